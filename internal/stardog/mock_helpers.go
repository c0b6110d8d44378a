// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package stardog

import (
	"context"
	"fmt"
	"os"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// stardog refuses to start without a license; tests that need a real
// server skip when this variable is unset
const LicensePathEnv = "STARDOG_LICENSE_PATH"

type StardogContainer struct {
	mappedPort int
	Container  *testcontainers.Container
	Connection Connection
}

// Spin up a local stardog container and a connection to it
func NewStardogContainer() (StardogContainer, error) {
	licensePath := os.Getenv(LicensePathEnv)
	if licensePath == "" {
		return StardogContainer{}, fmt.Errorf("%s is not set", LicensePathEnv)
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "stardog/stardog:latest",
		ExposedPorts: []string{"5820/tcp"},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      licensePath,
				ContainerFilePath: "/var/opt/stardog/stardog-license-key.bin",
				FileMode:          0o644,
			},
		},
		// the admin endpoint only answers once the server has read its license
		WaitingFor: wait.ForHTTP("/admin/alive").WithPort("5820/tcp"),
	}
	stardogC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return StardogContainer{}, err
	}

	port, err := stardogC.MappedPort(ctx, "5820/tcp")
	if err != nil {
		return StardogContainer{}, err
	}
	host, err := stardogC.Host(ctx)
	if err != nil {
		return StardogContainer{}, err
	}

	conn := Connection{
		Endpoint: "http://" + host + ":" + port.Port(),
		Username: "admin",
		Password: "admin",
	}.withClient()
	return StardogContainer{Connection: conn, mappedPort: port.Int(), Container: &stardogC}, nil
}
