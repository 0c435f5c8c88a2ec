package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-telemetry/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func TestBuildRegistry_Memory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{RegistryBackend: config.BackendMemory, SeedVehicles: []string{"truck-1", "van-2"}}

	reg, err := buildRegistry(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer reg.close()

	ids, err := reg.ids.AllVehicleIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"truck-1", "van-2"}, ids)
	assert.NotNil(t, reg.vehicles)
}

func TestBuildRegistry_Unreachable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	t.Run("redis", func(t *testing.T) {
		_, err := buildRegistry(ctx, &config.Config{RegistryBackend: config.BackendRedis, RedisAddr: "127.0.0.1:1"}, logger)
		assert.Error(t, err)
	})

	t.Run("mongo", func(t *testing.T) {
		_, err := buildRegistry(ctx, &config.Config{RegistryBackend: config.BackendMongo, MongoURI: "not-a-uri"}, logger)
		assert.Error(t, err)
	})
}

func TestBuildAuth(t *testing.T) {
	logger, hook := test.NewNullLogger()

	service, err := buildAuth(&config.Config{AuthEnabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, service)

	service, err = buildAuth(&config.Config{AuthEnabled: true}, logger)
	require.NoError(t, err)
	assert.NotNil(t, service)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "AUTH_USERS")

	_, err = buildAuth(&config.Config{AuthEnabled: true, AuthUsers: "broken"}, logger)
	assert.Error(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	service, err = buildAuth(&config.Config{AuthEnabled: true, AuthUsers: "ops:" + string(hash) + ":operator"}, logger)
	require.NoError(t, err)
	user, err := service.Authenticate("ops", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops", user.Username)
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	// Grab a free port, then release it for the server.
	probe := httptest.NewServer(http.NotFoundHandler())
	port := probe.URL[strings.LastIndex(probe.URL, ":")+1:]
	probe.Close()

	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Port:                    port,
		RegistryBackend:         config.BackendMemory,
		SeedVehicles:            []string{"truck-1"},
		SpeedLimit:              80,
		LowFuelThreshold:        15,
		LowBatteryThreshold:     15,
		HighEngineTempThreshold: 110,
		AnalyticsWindow:         time.Hour,
		ShutdownTimeout:         time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logger) }()

	base := "http://127.0.0.1:" + port
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Post(base+"/api/telemetry/truck-1", "application/json", strings.NewReader(`{"speed": 120}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
