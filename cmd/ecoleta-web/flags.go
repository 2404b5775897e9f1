package main

type flagType int
type flagMap map[flagType]string

const (
	listenAddress flagType = iota
	servicePort

	configurationFile
	itemsApiUrl
	ibgeApiUrl
	ibgeRequestsPerSecond
	requestTimeout
	geoipDatabase

	redisHost
	redisPort
	redisPassword
	redisDB
	cacheTTL
)
