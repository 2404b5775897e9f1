package types

type Item struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func NewLocation(lat, lng float64) Location {
	return Location{Latitude: lat, Longitude: lng}
}

// Pair returns the location as a [latitude, longitude] tuple, the order the map expects.
func (l Location) Pair() [2]float64 {
	return [2]float64{l.Latitude, l.Longitude}
}

func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}
