// Package avalon is the Alpaca Telescope driver for Avalon mounts with a
// StarGo controller.
package avalon

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"stargo/pkg/alpaca"
	"stargo/pkg/stargo"
	"stargo/pkg/stargo/sim"
)

const (
	telescopeUID  = "5f3c2a1e-8b7d-4c61-9e2a-7d0b4a6f1c38"
	deviceName    = "Avalon StarGo"
	deviceType    = "Telescope"
	driverName    = "StarGo Telescope Driver"
	driverVersion = "1.0"

	// interfaceVersion is ITelescopeV3; devicestate is served as well.
	interfaceVersion = 3
)

type connState int

const (
	connStateDisconnected connState = iota
	connStateConnecting
	connStateConnected
)

// siderealRate is the sidereal rate in degrees per second.
const siderealRate = 360.0 / 86164.0905

// Driver represents the StarGo telescope Alpaca driver.
type Driver struct {
	number  int                // Driver number
	store   *store             // Configuration store
	tmpl    *template.Template // HTML template for rendering the setup form
	metrics *stargo.Collector
	logger  log.FieldLogger

	mu    sync.Mutex
	state connState

	// Created when the driver is connected
	transport stargo.Transport
	mount     *stargo.Mount
	client    mqtt.Client
	pub       *publisher
	settings  stargo.Settings
	latitude  float64
	longitude float64
	cancel    context.CancelFunc
	done      sync.WaitGroup

	moveMu  sync.Mutex
	moveDir [2]stargo.Direction // manual motion per axis
	moving  [2]bool

	openTransport func(Config, log.FieldLogger) (stargo.Transport, error)
	connectMQTT   func(MQTTConfig) (mqtt.Client, error)
}

func NewDriver(number int, db *bolt.DB, tmpl *template.Template, metrics *stargo.Collector, logger log.FieldLogger) (*Driver, error) {
	store, err := NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %v", err)
	}

	driver := Driver{
		number:        number,
		tmpl:          tmpl,
		store:         store,
		metrics:       metrics,
		state:         connStateDisconnected,
		logger:        logger,
		openTransport: openTransport,
		connectMQTT:   createMQTTClient,
	}

	return &driver, nil
}

func openTransport(cfg Config, logger log.FieldLogger) (stargo.Transport, error) {
	if cfg.Simulate {
		return sim.New(logger), nil
	}
	t, err := stargo.OpenSerial(cfg.SerialPort, cfg.BaudRate)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SeedConfig replaces the stored configuration, e.g. from a YAML file.
func (d *Driver) SeedConfig(cfg Config) error {
	d.logger.Infof("Seeding telescope config: %+v", cfg)
	return d.store.SetConfig(cfg)
}

func (d *Driver) Close() {
	d.logger.Info("Closing StarGo driver")

	if d.Connected() {
		if err := d.Disconnect(); err != nil {
			d.logger.Errorf("failed to disconnect: %v", err)
		}
	}
}

func (d *Driver) Connect() error {
	config, err := d.store.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to get telescope config: %v", err)
	}

	d.mu.Lock()
	if d.state != connStateDisconnected {
		d.mu.Unlock()
		return fmt.Errorf("%w: driver is already connected", alpaca.ErrInvalidOperation)
	}
	d.state = connStateConnecting
	d.mu.Unlock()

	if err := d.connect(config); err != nil {
		d.mu.Lock()
		d.state = connStateDisconnected
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *Driver) connect(config Config) error {
	transport, err := d.openTransport(config, d.logger)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", config.SerialPort, err)
	}

	var (
		client mqtt.Client
		pub    *publisher
	)
	if config.MQTT.Enabled {
		client, err = d.connectMQTT(config.MQTT)
		if err != nil {
			// Status publishing is optional; the mount stays usable.
			d.logger.Errorf("MQTT disabled: %v", err)
		} else {
			pub = newPublisher(config.MQTT.TopicRoot, mqttPublish(client), d.logger.WithField("component", "mqtt"))
		}
	}

	var listener stargo.Listener
	if pub != nil {
		listener = pub
	}
	mount, err := stargo.NewMount(transport, stargo.Config{
		RequestDelay: config.requestDelay(),
		PulseGuiding: config.PulseGuiding,
	}, d.metrics, listener, d.logger)
	if err == nil {
		err = d.initialize(mount, config)
	}
	if err != nil {
		transport.Close()
		if client != nil {
			client.Disconnect(100)
		}
		return err
	}
	mount.SetAuxFactory(func() stargo.AuxDevice {
		return &auxPort{pub: pub, logger: d.logger.WithField("component", "aux")}
	})

	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.transport = transport
	d.mount = mount
	d.client = client
	d.pub = pub
	d.cancel = cancel
	d.state = connStateConnected

	if pub != nil {
		d.done.Add(1)
		go func() {
			defer d.done.Done()
			pub.Run(ctx)
		}()
	}
	d.done.Add(1)
	go func() {
		defer d.done.Done()
		d.poll(ctx, mount, config.pollInterval())
	}()
	firmware := d.settings.Firmware
	d.mu.Unlock()

	// Command messages call back into the driver, so subscribe unlocked.
	if pub != nil {
		d.subscribeCommands(client, config.MQTT.TopicRoot)
	}

	d.logger.Infof("Connected to %s", firmware)
	return nil
}

// initialize runs the connect sequence: handshake, settings, site and time.
func (d *Driver) initialize(mount *stargo.Mount, config Config) error {
	align, err := mount.Handshake()
	if err != nil {
		return fmt.Errorf("mount handshake failed: %w", err)
	}
	d.logger.Infof("Alignment: %+v", align)

	settings, err := mount.ReadSettings()
	if err != nil {
		d.logger.Warnf("Some settings could not be read: %v", err)
	}

	latitude, longitude := config.Latitude, config.Longitude
	if config.SyncLocation {
		err = mount.UpdateLocation(latitude, longitude)
	} else {
		latitude, longitude, err = mount.SendScopeLocation()
	}
	if err != nil {
		return fmt.Errorf("failed to set the site location: %w", err)
	}

	if err := mount.SendTime(time.Now()); err != nil {
		d.logger.Warnf("Failed to send the time: %v", err)
	}
	if err := mount.Poll(); err != nil {
		d.logger.Warnf("Initial status poll failed: %v", err)
	}

	d.mu.Lock()
	d.settings = settings
	d.latitude, d.longitude = latitude, longitude
	d.mu.Unlock()
	return nil
}

func (d *Driver) poll(ctx context.Context, mount *stargo.Mount, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := mount.Poll(); err != nil {
				d.logger.Warnf("Status poll failed: %v", err)
			}
		}
	}
}

func (d *Driver) Disconnect() error {
	d.mu.Lock()
	if d.state != connStateConnected {
		d.mu.Unlock()
		return alpaca.ErrNotConnected
	}
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		// another call is already disconnecting
		return nil
	}

	cancel()
	d.done.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mount.Close()
	if err := d.transport.Close(); err != nil {
		d.logger.Warnf("Failed to close transport: %v", err)
	}
	if d.client != nil {
		d.client.Disconnect(100)
	}
	d.mount, d.transport, d.client, d.pub = nil, nil, nil, nil
	d.state = connStateDisconnected
	d.logger.Info("Disconnected from mount")
	return nil
}

func (d *Driver) Connecting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == connStateConnecting
}

func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == connStateConnected
}

// connectedMount returns the mount while connected. The Mount serializes
// its own commands, so callers use it without holding d.mu.
func (d *Driver) connectedMount() (*stargo.Mount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != connStateConnected {
		return nil, alpaca.ErrNotConnected
	}
	return d.mount, nil
}

// ascomError gives mount errors their ASCOM error number.
func ascomError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, stargo.ErrRejected) {
		return fmt.Errorf("%w: %v", alpaca.ErrInvalidOperation, err)
	}
	return err
}

func (d *Driver) DeviceInfo() alpaca.DeviceInfo {
	return alpaca.DeviceInfo{
		Name:        deviceName,
		Description: "Avalon mount with StarGo controller",
		Type:        deviceType,
		Number:      d.number,
		UniqueID:    telescopeUID,
	}
}

func (d *Driver) DriverInfo() alpaca.DriverInfo {
	return alpaca.DriverInfo{
		Name:             driverName,
		Version:          driverVersion,
		InterfaceVersion: interfaceVersion,
	}
}

func (d *Driver) GetState() []alpaca.StateProperty {
	props := []alpaca.StateProperty{
		{
			Name:  "TimeStamp",
			Value: time.Now().Format(time.RFC3339),
		},
	}

	if status, err := d.Status(); err == nil {
		props = append(props, status.ToProperties()...)
	}

	return props
}

func (d *Driver) Capabilities() alpaca.TelescopeCapabilities {
	axisRate := alpaca.Rate{Minimum: siderealRate, Maximum: maxAxisRate}
	return alpaca.TelescopeCapabilities{
		CanFindHome:     true,
		CanPark:         true,
		CanPulseGuide:   true,
		CanSetGuideRate: true,
		CanSetPark:      true,
		CanSetTracking:  true,
		CanSlewAsync:    true,
		CanSync:         true,
		CanUnpark:       true,
		AxisRates:       []alpaca.Rate{axisRate, axisRate},
		TrackingRates:   []alpaca.DriveRate{alpaca.DriveSidereal, alpaca.DriveLunar, alpaca.DriveSolar},
	}
}

var pierSides = map[stargo.PierSide]alpaca.PierSide{
	stargo.PierUnknown: alpaca.PierUnknown,
	stargo.PierEast:    alpaca.PierEast,
	stargo.PierWest:    alpaca.PierWest,
}

var driveRates = map[stargo.TrackMode]alpaca.DriveRate{
	stargo.TrackSidereal: alpaca.DriveSidereal,
	stargo.TrackLunar:    alpaca.DriveLunar,
	stargo.TrackSolar:    alpaca.DriveSolar,
}

func (d *Driver) Status() (alpaca.TelescopeStatus, error) {
	mount, err := d.connectedMount()
	if err != nil {
		return alpaca.TelescopeStatus{}, err
	}

	st := mount.Status()
	manual := mount.Moving(stargo.AxisWE) || mount.Moving(stargo.AxisNS)
	return alpaca.TelescopeStatus{
		RightAscension: st.RA,
		Declination:    st.Dec,
		SideOfPier:     pierSides[st.PierSide],
		Tracking:       st.State == stargo.ScopeTracking,
		TrackingRate:   driveRates[st.Motion.TrackMode],
		AtHome:         st.ParkHome == stargo.AtHome,
		AtPark:         st.State == stargo.ScopeParked,
		Slewing:        st.State == stargo.ScopeSlewing || st.State == stargo.ScopeParking || manual,
		IsPulseGuiding: mount.IsPulseGuiding(),
	}, nil
}

func (d *Driver) SiderealTime() (float64, error) {
	if _, err := d.connectedMount(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return stargo.LocalSiderealTime(time.Now(), d.longitude), nil
}

func (d *Driver) SiteLatitude() (float64, error) {
	if _, err := d.connectedMount(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latitude, nil
}

func (d *Driver) SiteLongitude() (float64, error) {
	if _, err := d.connectedMount(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.longitude, nil
}

func (d *Driver) setSite(latitude, longitude float64) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	if err := mount.UpdateLocation(latitude, longitude); err != nil {
		return ascomError(err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latitude, d.longitude = latitude, longitude
	return nil
}

func (d *Driver) SetSiteLatitude(latitude float64) error {
	d.mu.Lock()
	longitude := d.longitude
	d.mu.Unlock()
	return d.setSite(latitude, longitude)
}

func (d *Driver) SetSiteLongitude(longitude float64) error {
	d.mu.Lock()
	latitude := d.latitude
	d.mu.Unlock()
	return d.setSite(latitude, longitude)
}

func (d *Driver) GuideRates() (ra, dec float64, err error) {
	mount, err := d.connectedMount()
	if err != nil {
		return 0, 0, err
	}
	ra, dec, err = mount.GuideSpeeds()
	if err != nil {
		return 0, 0, err
	}
	return ra * siderealRate, dec * siderealRate, nil
}

func (d *Driver) SetGuideRates(ra, dec float64) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	if err := mount.SetGuideSpeeds(ra/siderealRate, dec/siderealRate); err != nil {
		if errors.Is(err, stargo.ErrRejected) {
			return fmt.Errorf("%w: %v", alpaca.ErrInvalidValue, err)
		}
		return err
	}
	return nil
}

func (d *Driver) SetTracking(enabled bool) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.SetTracking(enabled))
}

func (d *Driver) SetTrackingRate(rate alpaca.DriveRate) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	for mode, r := range driveRates {
		if r == rate {
			return ascomError(mount.SetTrackMode(mode))
		}
	}
	return fmt.Errorf("%w: tracking rate %d", alpaca.ErrInvalidValue, rate)
}

func (d *Driver) SlewToCoordinatesAsync(ra, dec float64) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.Goto(ra, dec))
}

func (d *Driver) SyncToCoordinates(ra, dec float64) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.Sync(ra, dec))
}

func (d *Driver) AbortSlew() error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	if err := mount.Abort(); err != nil {
		return err
	}
	d.moveMu.Lock()
	d.moving = [2]bool{}
	d.moveMu.Unlock()
	return nil
}

func (d *Driver) Park() error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.Park())
}

func (d *Driver) Unpark() error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.Unpark())
}

func (d *Driver) SetPark() error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.SetParkPosition())
}

func (d *Driver) FindHome() error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	return ascomError(mount.GotoHome())
}

func (d *Driver) PulseGuide(dir alpaca.GuideDirection, duration time.Duration) error {
	mount, err := d.connectedMount()
	if err != nil {
		return err
	}
	if duration > stargo.MaxGuideDuration {
		return fmt.Errorf("%w: guide duration %v exceeds %v", alpaca.ErrInvalidValue, duration, stargo.MaxGuideDuration)
	}
	// both enumerations are ordered north, south, east, west
	return ascomError(mount.Guide(stargo.Direction(dir), duration))
}
