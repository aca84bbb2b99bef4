package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the events API.
const ServiceName = "rsschool.events"

// NewServer builds the gRPC server with service-token auth and the health
// service registered. Both the overall and the named status start as
// NOT_SERVING until the readiness job reports otherwise.
func NewServer(serviceToken string) (*grpc.Server, *health.Server, error) {
	unary, err := NewServiceAuthUnaryInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	stream, err := NewServiceAuthStreamInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	server := grpc.NewServer(grpc.UnaryInterceptor(unary), grpc.StreamInterceptor(stream))

	healthServer := health.NewServer()
	SetServing(healthServer, false)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}

// SetServing flips both health entries at once.
func SetServing(healthServer *health.Server, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	healthServer.SetServingStatus("", status)
	healthServer.SetServingStatus(ServiceName, status)
}
