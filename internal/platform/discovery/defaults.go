// Package discovery centralizes internal service-discovery conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceLedger is the ledger HTTP API service identity.
	ServiceLedger = "ledger"
	// ServiceWorker is the worker gRPC service identity.
	ServiceWorker = "worker"
	// ServiceJaeger is the jaeger HTTP service identity.
	ServiceJaeger = "jaeger"
)

var grpcPorts = map[string]int{
	ServiceWorker: 8089,
}

var httpPorts = map[string]int{
	ServiceLedger: 8080,
	ServiceJaeger: 16686,
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), grpcPorts)
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), httpPorts)
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

// OrDefaultHTTPAddr returns value when set, otherwise the service convention.
func OrDefaultHTTPAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultHTTPAddr(service)
}

// OrDefaultHTTPBaseURL returns value when set, otherwise http://<service-host:port>.
func OrDefaultHTTPBaseURL(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	addr := DefaultHTTPAddr(service)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
