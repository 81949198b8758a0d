package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AllocateOrReuse returns the port of appID's first interface, ignoring
// requestedPort, or binds a new interface at requestedPort if the app has none.
// created reports which happened.
func AllocateOrReuse(ctx context.Context, rt Runtime, appID string, requestedPort uint16) (port uint16, created bool, err error) {
	ports, err := rt.ListAppInterfaces(ctx, appID)
	if err != nil {
		return 0, false, fmt.Errorf("listing interfaces for app %s: %w", appID, err)
	}
	if len(ports) > 0 {
		if requestedPort != 0 && requestedPort != ports[0] {
			log.Info().Msgf("app %s already has an interface on port %d, ignoring requested port %d", appID, ports[0], requestedPort)
		}
		return ports[0], false, nil
	}

	port, err = rt.AddAppInterface(ctx, appID, requestedPort)
	if err != nil {
		return 0, false, fmt.Errorf("adding interface for app %s on port %d: %w", appID, requestedPort, err)
	}
	log.Info().Msgf("app %s interface bound on port %d", appID, port)
	return port, true, nil
}
