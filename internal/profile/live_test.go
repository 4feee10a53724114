package profile

import (
	"context"
	"testing"
	"time"

	devenv "finscraper/dev/env"
	"finscraper/internal/components/telemetry"
	"finscraper/internal/pipeline"

	"github.com/stretchr/testify/require"
)

type stateConfig struct {
	Profiles []Profile `json:"profiles"`
}

// TestLivePortal runs a configured profile against the real portal, it is skipped unless
// dev/.state/portal_test.json5 names a profile.
func TestLivePortal(t *testing.T) {
	portal, err := devenv.GetStateConfig[devenv.PortalTestConfig]("portal_test.json5")
	if err != nil || portal.Profile == "" {
		t.Skip("no live portal configured in dev/.state/portal_test.json5")
	}
	config, err := devenv.GetStateConfig[stateConfig]("config.json5")
	if err != nil {
		t.Skip("no profiles configured in dev/.state/config.json5")
	}

	p, err := Find(config.Profiles, portal.Profile)
	require.NoError(t, err)
	main, cleanup, err := Build(p, Credentials{Username: portal.Username, Password: portal.Password}, telemetry.SlogAPI{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	outcome := pipeline.NewRunner(telemetry.SlogAPI{}).Run(ctx, pipeline.Options{
		OnProgress: func(adapter string, phase pipeline.Phase) {
			t.Log(adapter, phase)
		},
	}, main, cleanup)
	require.True(t, outcome.Success, "%s: %s", outcome.ErrorType, outcome.ErrorMessage)
	require.NotEmpty(t, outcome.Data)
}
