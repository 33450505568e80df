package proxy

import (
	"net"
	"strconv"
	"time"
)

// Status represents the lifecycle stage of a tracked endpoint
type Status string

const (
	// StatusRaw marks a freshly scraped endpoint that has not been checked yet
	StatusRaw Status = "raw"
	// StatusCached marks an endpoint restored from a previous run
	StatusCached Status = "cached"
	// StatusChecking marks an endpoint currently handed to a check run
	StatusChecking Status = "checking"
	// StatusActive marks an endpoint that passed its most recent check
	StatusActive Status = "active"
)

// Privacy represents the anonymity level of a proxy
type Privacy string

const (
	PrivacyElite       Privacy = "Elite"
	PrivacyAnonymous   Privacy = "Anonymous"
	PrivacyTransparent Privacy = "Transparent"
	PrivacyUnknown     Privacy = "Unknown"
)

// Record contains everything known about one proxy endpoint. A record is
// immutable once produced; a re-check yields a brand-new record that fully
// replaces the previous one.
type Record struct {
	Endpoint      string    `json:"endpoint" bson:"endpoint"`
	Status        Status    `json:"status" bson:"status"`
	Country       string    `json:"country" bson:"country"`
	CountryCode   string    `json:"countryCode" bson:"country_code"`
	Privacy       Privacy   `json:"privacy" bson:"privacy"`
	LatencyMs     float64   `json:"latencyMs" bson:"latency_ms"`
	LastCheckedAt time.Time `json:"lastCheckedAt" bson:"last_checked_at"`
}

// IP returns the bare address portion of the endpoint
func (r *Record) IP() string {
	host, _, err := net.SplitHostPort(r.Endpoint)
	if err != nil {
		return r.Endpoint
	}
	return host
}

// Port returns the port portion of the endpoint
func (r *Record) Port() string {
	_, port, err := net.SplitHostPort(r.Endpoint)
	if err != nil {
		return ""
	}
	return port
}

// ValidEndpoint reports whether s is a well-formed ip:port string
func ValidEndpoint(s string) bool {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}

	if net.ParseIP(host) == nil {
		return false
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return false
	}

	return true
}
