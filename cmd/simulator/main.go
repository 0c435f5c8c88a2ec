package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

// Cities for realistic routes
var cities = []models.Location{
	{Lat: 51.5074, Lon: -0.1278},   // London
	{Lat: 40.7128, Lon: -74.0060},  // New York
	{Lat: 40.4168, Lon: -3.7038},   // Madrid
	{Lat: 35.1856, Lon: 33.3823},   // Nicosia
	{Lat: 4.7110, Lon: -74.0721},   // Bogotá
	{Lat: 48.8566, Lon: 2.3522},    // Paris
	{Lat: 41.0082, Lon: 28.9784},   // Istanbul
	{Lat: 51.4816, Lon: -3.1791},   // Cardiff
	{Lat: 34.0522, Lon: -118.2437}, // Los Angeles
	{Lat: 52.5200, Lon: 13.4050},   // Berlin
	{Lat: 35.6762, Lon: 139.6503},  // Tokyo
	{Lat: -33.8688, Lon: 151.2093}, // Sydney
	{Lat: 1.3521, Lon: 103.8198},   // Singapore
	{Lat: 43.6532, Lon: -79.3832},  // Toronto
}

func jitterLocation(base models.Location, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func randomLocation() models.Location {
	base := cities[rand.Intn(len(cities))]
	return jitterLocation(base, 500) // start close to roads
}

// client talks to the telemetry API over HTTP.
type client struct {
	apiURL string
	token  string
	http   *http.Client
}

func newClient(apiURL, token string) *client {
	return &client{apiURL: apiURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// login exchanges credentials for an API token.
func (c *client) login(ctx context.Context, username, password string) error {
	resp, err := c.post(ctx, "/auth/token", models.TokenRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request failed with status: %d", resp.StatusCode)
	}
	var tr models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	c.token = tr.Token
	log.WithFields(log.Fields{"username": username, "role": tr.Role}).Info("Obtained API token")
	return nil
}

func (c *client) createVehicle(ctx context.Context, vehicleID, vtype string) (string, error) {
	makes := map[string][]string{
		"ICE": {"Ford", "Chevrolet", "Toyota", "Honda", "BMW"},
		"EV":  {"Tesla", "Nissan", "Chevrolet", "Ford", "Audi"},
	}
	modelNames := map[string][]string{
		"ICE": {"F-150", "Silverado", "Camry", "Civic", "X5"},
		"EV":  {"Model 3", "Leaf", "Bolt", "Mach-E", "e-tron"},
	}

	vehicle := models.Vehicle{
		ID:     vehicleID,
		Type:   vtype,
		Make:   makes[vtype][rand.Intn(len(makes[vtype]))],
		Model:  modelNames[vtype][rand.Intn(len(modelNames[vtype]))],
		Year:   2020 + rand.Intn(5), // 2020-2024
		Status: "active",
	}

	resp, err := c.post(ctx, "/vehicles", vehicle)
	if err != nil {
		return "", fmt.Errorf("failed to create vehicle: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		// Left over from an earlier run; reuse it.
		return vehicleID, nil
	default:
		return "", fmt.Errorf("vehicle creation failed with status: %d", resp.StatusCode)
	}

	var created models.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("invalid vehicle ID in response")
	}

	log.WithFields(log.Fields{
		"vehicle_id": created.ID,
		"type":       vtype,
		"make":       vehicle.Make,
		"model":      vehicle.Model,
	}).Info("Created vehicle")

	return created.ID, nil
}

// publisher delivers one reading for one vehicle.
type publisher interface {
	Publish(ctx context.Context, vehicleID string, in models.TelemetryInput) error
}

// Publish sends a reading to POST /telemetry/{vehicleID}.
func (c *client) Publish(ctx context.Context, vehicleID string, in models.TelemetryInput) error {
	resp, err := c.post(ctx, "/telemetry/"+vehicleID, in)
	if err != nil {
		return fmt.Errorf("failed to send telemetry: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("telemetry rejected with status: %d", resp.StatusCode)
	}
	return nil
}

// mqttPublisher publishes readings to {prefix}/{vehicleID}.
type mqttPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

func newMQTTPublisher(broker, prefix string, qos byte) (*mqttPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("fleet-simulator-%d", rand.Intn(1_000_000))).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return &mqttPublisher{client: c, prefix: prefix, qos: qos}, nil
}

func topicFor(prefix, vehicleID string) string {
	return fmt.Sprintf("%s/%s", prefix, vehicleID)
}

func (p *mqttPublisher) Publish(_ context.Context, vehicleID string, in models.TelemetryInput) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	token := p.client.Publish(topicFor(p.prefix, vehicleID), p.qos, false, data)
	token.Wait()
	return token.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// --- Routing & movement ---

type VehicleRoute struct {
	Points    []models.Location
	SegIndex  int
	SegOffset float64 // km along current segment
}

type VehicleState struct {
	VehicleID  string
	Type       string
	Position   models.Location
	SpeedKmh   float64
	FuelPct    float64
	BatteryPct float64
	EngineTemp float64
	OdometerKm float64
	Route      *VehicleRoute
}

func haversineKm(a, b models.Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}

func fetchOSRMRoute(ctx context.Context, start, end models.Location) ([]models.Location, error) {
	url := fmt.Sprintf("https://router.project-osrm.org/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson", start.Lon, start.Lat, end.Lon, end.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	var obj struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, err
	}
	if len(obj.Routes) == 0 || len(obj.Routes[0].Geometry.Coordinates) < 2 {
		return nil, fmt.Errorf("no route")
	}
	coords := obj.Routes[0].Geometry.Coordinates
	pts := make([]models.Location, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, models.Location{Lat: c[1], Lon: c[0]})
	}
	return pts, nil
}

// planNewRoute asks OSRM for a road route when useOSRM is set and falls back
// to a short straight leg otherwise.
func planNewRoute(ctx context.Context, s *VehicleState, useOSRM bool) {
	start := s.Position
	fallback := &VehicleRoute{Points: []models.Location{start, jitterLocation(start, 2000)}}
	if !useOSRM {
		s.Route = fallback
		return
	}
	var end models.Location
	for i := 0; i < 10; i++ {
		cand := cities[rand.Intn(len(cities))]
		if haversineKm(start, cand) > 50 {
			end = jitterLocation(cand, 500)
			break
		}
	}
	pts, err := fetchOSRMRoute(ctx, start, end)
	if err != nil {
		s.Route = fallback
		return
	}
	s.Route = &VehicleRoute{Points: pts}
}

// stepAlongRoute advances the vehicle and returns the distance covered in km.
func stepAlongRoute(ctx context.Context, s *VehicleState, tickSec float64, useOSRM bool) float64 {
	if s.Route == nil || len(s.Route.Points) < 2 {
		planNewRoute(ctx, s, useOSRM)
	}
	start := s.Position
	remKm := s.SpeedKmh * (tickSec / 3600.0)
	for remKm > 0 && s.Route.SegIndex < len(s.Route.Points)-1 {
		a := s.Route.Points[s.Route.SegIndex]
		b := s.Route.Points[s.Route.SegIndex+1]
		segLen := haversineKm(a, b)
		leftOnSeg := segLen - s.Route.SegOffset
		if remKm >= leftOnSeg {
			s.Position = b
			s.Route.SegIndex++
			s.Route.SegOffset = 0
			remKm -= leftOnSeg
			continue
		}
		t := math.Min(math.Max((s.Route.SegOffset+remKm)/segLen, 0), 1)
		s.Position = lerp(a, b, t)
		s.Route.SegOffset += remKm
		remKm = 0
	}
	if s.Route.SegIndex >= len(s.Route.Points)-1 {
		planNewRoute(ctx, s, useOSRM)
	}
	km := haversineKm(start, s.Position)
	s.OdometerKm += km
	return km
}

// advance applies one tick of driving: speed noise, movement, energy use and
// engine heat.
func advance(ctx context.Context, s *VehicleState, interval time.Duration, useOSRM bool) {
	s.SpeedKmh += (rand.Float64()*2 - 1) * 4
	if rand.Float64() < 0.05 {
		s.SpeedKmh += 15 // occasional burst over the limit
	}
	s.SpeedKmh = math.Min(math.Max(s.SpeedKmh, 0), 95)

	km := stepAlongRoute(ctx, s, interval.Seconds(), useOSRM)

	if s.Type == "ICE" {
		s.FuelPct -= km * 0.4
		if s.FuelPct < 5 {
			s.FuelPct = 100
		}
		s.EngineTemp += (rand.Float64()*2 - 1) * 2
		s.EngineTemp = math.Min(math.Max(s.EngineTemp, 80), 118)
	} else {
		s.BatteryPct -= km * 0.8
		if s.BatteryPct < 5 {
			s.BatteryPct = 100
		}
	}
}

func telemetryFromState(s *VehicleState, now time.Time) models.TelemetryInput {
	status := models.EngineRunning
	if s.SpeedKmh < 1 {
		status = models.EngineIdle
	}
	in := models.TelemetryInput{
		Timestamp:    &now,
		Location:     s.Position,
		Speed:        math.Round(s.SpeedKmh*10) / 10,
		EngineStatus: string(status),
		Odometer:     models.Float(math.Round(s.OdometerKm*1000) / 1000),
	}
	if s.Type == "ICE" {
		in.FuelLevel = models.Float(s.FuelPct)
		in.EngineTemp = models.Float(s.EngineTemp)
	} else {
		in.BatteryLevel = models.Float(s.BatteryPct)
	}
	return in
}

func sendTelemetry(ctx context.Context, p publisher, s *VehicleState) {
	in := telemetryFromState(s, time.Now().UTC())
	if err := p.Publish(ctx, s.VehicleID, in); err != nil {
		log.WithError(err).WithField("vehicle_id", s.VehicleID).Error("Failed to send telemetry")
		return
	}
	log.WithFields(log.Fields{"vehicle_id": s.VehicleID, "speed": in.Speed}).Debug("Sent telemetry")
}

func simulateVehicle(ctx context.Context, p publisher, s *VehicleState, interval time.Duration, useOSRM bool) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			advance(ctx, s, interval, useOSRM)
			sendTelemetry(ctx, p, s)
		}
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fleetSize := envInt("FLEET_SIZE", 10)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 2)) * time.Second
	useOSRM := os.Getenv("SIM_USE_OSRM") == "true"

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting fleet simulation")

	api := newClient(apiURL, os.Getenv("SIM_AUTH_TOKEN"))
	if user := os.Getenv("SIM_USERNAME"); user != "" && api.token == "" {
		if err := api.login(ctx, user, os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Failed to authenticate")
		}
	}

	var pub publisher = api
	if broker := os.Getenv("SIM_MQTT_BROKER"); broker != "" {
		prefix := os.Getenv("SIM_MQTT_PREFIX")
		if prefix == "" {
			prefix = "fleet/telemetry"
		}
		mp, err := newMQTTPublisher(broker, prefix, 1)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		defer mp.Close()
		pub = mp
		log.WithFields(log.Fields{"broker": broker, "prefix": prefix}).Info("Publishing telemetry over MQTT")
	}

	states := make([]*VehicleState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		vtype := []string{"ICE", "EV"}[rand.Intn(2)]
		vehicleID, err := api.createVehicle(ctx, fmt.Sprintf("vehicle-%d", i+1), vtype)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		states = append(states, &VehicleState{
			VehicleID:  vehicleID,
			Type:       vtype,
			Position:   randomLocation(),
			SpeedKmh:   30 + rand.Float64()*30,
			FuelPct:    50 + rand.Float64()*50,
			BatteryPct: 50 + rand.Float64()*50,
			EngineTemp: 90,
			OdometerKm: float64(rand.Intn(150000)),
		})
	}

	log.WithField("created_vehicles", len(states)).Info("Vehicle creation completed")
	if len(states) == 0 {
		log.Error("No vehicles created. Ensure credentials are valid and the API is reachable. Exiting.")
		return
	}

	var wg sync.WaitGroup
	for _, s := range states {
		wg.Add(1)
		go func() {
			defer wg.Done()
			simulateVehicle(ctx, pub, s, interval, useOSRM)
		}()
	}

	log.Info("Telemetry simulation started")
	wg.Wait()
	log.Info("Telemetry simulation stopped")
}
