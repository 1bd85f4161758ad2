// Package util provides helper functions shared across integration tests.
//
// StartPostgres and StartRedis launch disposable containers for the store and
// dedup guard tests. Both return the connection target and a cleanup function,
// and both expect the caller to have checked SkipWithoutDocker first.
package util

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipWithoutDocker skips the test when no docker binary is on the path.
func SkipWithoutDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
}

// StartPostgres runs a disposable postgres container and returns its DSN.
func StartPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "notify",
			"POSTGRES_PASSWORD": "notify",
			"POSTGRES_DB":       "rides",
		},
		// The server restarts once during init, so wait for the second ready line.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	cleanup := func() { _ = cont.Terminate(ctx) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "5432")
	if err != nil {
		cleanup()
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://notify:notify@%s/rides?sslmode=disable", net.JoinHostPort(host, port.Port()))
	return dsn, cleanup
}

// StartRedis runs a disposable redis container and returns its address.
func StartRedis(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	cleanup := func() { _ = cont.Terminate(ctx) }
	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "6379")
	if err != nil {
		cleanup()
		t.Fatalf("port: %v", err)
	}
	return net.JoinHostPort(host, port.Port()), cleanup
}
