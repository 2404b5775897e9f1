package api

import (
	"encoding/json"
)

type meta struct {
	TotalRecords uint64 `json:"totalRecords"`
	Count        uint64 `json:"count"`
}

type ApiResponse struct {
	Meta *meta `json:"meta,omitempty"`
	Data any   `json:"data"`
}

func NewApiResponse[T any](data []T) ApiResponse {
	if data == nil {
		data = []T{}
	}

	return ApiResponse{
		Meta: &meta{
			TotalRecords: uint64(len(data)),
			Count:        uint64(len(data)),
		},
		Data: data,
	}
}

func (r ApiResponse) Byte() []byte {
	b, _ := json.Marshal(r)
	return b
}
