package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"

	"github.com/hashicorp/consul/api"
)

// ErrNoHealthyInstances is returned when Consul knows no passing instance of a service.
var ErrNoHealthyInstances = errors.New("no healthy service instances")

// ConsulConfig holds the agent address and this service's registration details.
type ConsulConfig struct {
	Address     string `env:"CONSUL_ADDR"`
	ServiceID   string `env:"CONSUL_SERVICE_ID"`
	ServiceName string `env:"CONSUL_SERVICE_NAME"   envDefault:"auth-service"`
	ServiceHost string `env:"CONSUL_SERVICE_HOST"   envDefault:"127.0.0.1"`
	CheckPeriod string `env:"CONSUL_CHECK_INTERVAL" envDefault:"10s"`
}

// Enabled reports whether a Consul agent is configured.
func (c ConsulConfig) Enabled() bool {
	return c.Address != ""
}

// Consul wraps a Consul API client for registration and lookups.
type Consul struct {
	client *api.Client
	config ConsulConfig
}

// NewConsul creates a Consul client for the configured agent.
func NewConsul(cfg ConsulConfig) (*Consul, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &Consul{client: client, config: cfg}, nil
}

// Register announces this service with a gRPC health check on grpcAddr.
// The returned function deregisters it.
func (c *Consul) Register(grpcAddr string) (func() error, error) {
	_, portStr, err := net.SplitHostPort(grpcAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid grpc address %q: %w", grpcAddr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid grpc port %q: %w", portStr, err)
	}

	serviceID := c.config.ServiceID
	if serviceID == "" {
		serviceID = fmt.Sprintf("%s-%s-%d", c.config.ServiceName, c.config.ServiceHost, port)
	}

	registration := &api.AgentServiceRegistration{
		ID:      serviceID,
		Name:    c.config.ServiceName,
		Address: c.config.ServiceHost,
		Port:    port,
		Check: &api.AgentServiceCheck{
			GRPC:                           net.JoinHostPort(c.config.ServiceHost, portStr),
			Interval:                       c.config.CheckPeriod,
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := c.client.Agent().ServiceRegister(registration); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	return func() error {
		return c.client.Agent().ServiceDeregister(serviceID)
	}, nil
}

// ServiceResolver resolves a service name to the base URL of one passing instance.
type ServiceResolver struct {
	consul  *Consul
	service string
	scheme  string
}

// NewServiceResolver creates a resolver for service reached over scheme (http or https).
func NewServiceResolver(consul *Consul, service, scheme string) *ServiceResolver {
	if scheme == "" {
		scheme = "http"
	}
	return &ServiceResolver{consul: consul, service: service, scheme: scheme}
}

// Resolve picks a random passing instance of the service.
func (r *ServiceResolver) Resolve(ctx context.Context) (string, error) {
	entries, _, err := r.consul.client.Health().Service(r.service, "", true, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to query consul for %s: %w", r.service, err)
	}

	if len(entries) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoHealthyInstances, r.service)
	}

	entry := entries[rand.IntN(len(entries))]

	host := entry.Service.Address
	if host == "" {
		host = entry.Node.Address
	}

	return fmt.Sprintf("%s://%s", r.scheme, net.JoinHostPort(host, strconv.Itoa(entry.Service.Port))), nil
}
