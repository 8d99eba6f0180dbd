package alpaca

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

// DriveRate is an ASCOM tracking rate.
type DriveRate int

const (
	DriveSidereal DriveRate = iota
	DriveLunar
	DriveSolar
	DriveKing
)

// GuideDirection is an ASCOM guide direction.
type GuideDirection int

const (
	GuideNorth GuideDirection = iota
	GuideSouth
	GuideEast
	GuideWest
)

// PierSide is the ASCOM pointing state.
type PierSide int

const (
	PierUnknown PierSide = -1
	PierEast    PierSide = 0
	PierWest    PierSide = 1
)

// TelescopeAxis identifies a mount axis for MoveAxis.
type TelescopeAxis int

const (
	AxisPrimary TelescopeAxis = iota
	AxisSecondary
	AxisTertiary
)

const (
	alignmentGermanPolar  = 2
	equatorialTopocentric = 1
)

// Rate is an axis rate range in degrees per second.
type Rate struct {
	Minimum float64 `json:"Minimum"`
	Maximum float64 `json:"Maximum"`
}

type TelescopeCapabilities struct {
	CanFindHome     bool
	CanPark         bool
	CanPulseGuide   bool
	CanSetGuideRate bool
	CanSetPark      bool
	CanSetTracking  bool
	CanSlewAsync    bool
	CanSync         bool
	CanUnpark       bool
	AxisRates       []Rate // primary and secondary axis
	TrackingRates   []DriveRate
}

type TelescopeStatus struct {
	RightAscension float64 // hours
	Declination    float64 // degrees
	SideOfPier     PierSide
	Tracking       bool
	TrackingRate   DriveRate
	AtHome         bool
	AtPark         bool
	Slewing        bool
	IsPulseGuiding bool
}

func (ts TelescopeStatus) ToProperties() []StateProperty {
	return []StateProperty{
		{"AtHome", ts.AtHome},
		{"AtPark", ts.AtPark},
		{"Declination", ts.Declination},
		{"IsPulseGuiding", ts.IsPulseGuiding},
		{"RightAscension", ts.RightAscension},
		{"SideOfPier", ts.SideOfPier},
		{"Slewing", ts.Slewing},
		{"Tracking", ts.Tracking},
	}
}

type Telescope interface {
	Device

	// Telescope specific methods
	Capabilities() TelescopeCapabilities
	Status() (TelescopeStatus, error)
	SiderealTime() (float64, error)

	SiteLatitude() (float64, error)
	SetSiteLatitude(float64) error
	SiteLongitude() (float64, error)
	SetSiteLongitude(float64) error

	// Guide rates are in degrees per second.
	GuideRates() (ra, dec float64, err error)
	SetGuideRates(ra, dec float64) error

	SetTracking(bool) error
	SetTrackingRate(DriveRate) error

	SlewToCoordinatesAsync(ra, dec float64) error
	SyncToCoordinates(ra, dec float64) error
	AbortSlew() error

	Park() error
	Unpark() error
	SetPark() error
	FindHome() error

	PulseGuide(GuideDirection, time.Duration) error
	MoveAxis(TelescopeAxis, float64) error
}

type TelescopeHandler struct {
	DeviceHandler
	dev Telescope

	mu        sync.Mutex
	targetRA  *float64
	targetDec *float64
}

func NewTelescopeHandler(dev Telescope) *TelescopeHandler {
	return &TelescopeHandler{
		DeviceHandler: DeviceHandler{dev: dev},
		dev:           dev,
	}
}

func (th *TelescopeHandler) RegisterRoutes(mux *http.ServeMux) {
	th.DeviceHandler.RegisterRoutes(mux)

	for _, name := range []string{
		"athome", "atpark", "declination", "ispulseguiding", "rightascension",
		"sideofpier", "slewing", "tracking", "trackingrate",
	} {
		mux.Handle("GET /"+name, th.statusProperty(name))
	}
	for _, name := range []string{
		"canfindhome", "canpark", "canpulseguide", "cansetguiderates", "cansetpark",
		"cansettracking", "canslewasync", "cansync", "canunpark",
		"canslew", "canslewaltaz", "canslewaltazasync", "cansyncaltaz",
		"cansetdeclinationrate", "cansetrightascensionrate", "cansetpierside",
	} {
		mux.Handle("GET /"+name, th.capability(name))
	}

	mux.Handle("GET /alignmentmode", constant(alignmentGermanPolar))
	mux.Handle("GET /equatorialsystem", constant(equatorialTopocentric))
	mux.Handle("GET /declinationrate", constant(0.0))
	mux.Handle("GET /rightascensionrate", constant(0.0))
	mux.Handle("GET /slewsettletime", constant(0))
	mux.Handle("GET /doesrefraction", constant(false))
	for _, name := range []string{
		"altitude", "azimuth", "aperturearea", "aperturediameter", "focallength",
		"siteelevation", "destinationsideofpier",
	} {
		mux.Handle("GET /"+name, notImplemented())
	}
	for _, name := range []string{
		"slewtocoordinates", "slewtotarget", "slewtoaltaz", "slewtoaltazasync",
		"synctoaltaz", "declinationrate", "rightascensionrate", "sideofpier",
		"siteelevation", "doesrefraction", "slewsettletime",
	} {
		mux.Handle("PUT /"+name, notImplemented())
	}

	mux.Handle("GET /canmoveaxis", handlerFunc(th.handleCanMoveAxis))
	mux.Handle("GET /axisrates", handlerFunc(th.handleAxisRates))
	mux.Handle("GET /trackingrates", handlerFunc(th.handleTrackingRates))
	mux.Handle("GET /siderealtime", handlerFunc(th.handleSiderealTime))
	mux.Handle("GET /utcdate", handlerFunc(th.handleUTCDate))

	mux.Handle("GET /sitelatitude", handlerFunc(th.handleSiteLatitude))
	mux.Handle("PUT /sitelatitude", handlerFunc(th.handleSetSiteLatitude))
	mux.Handle("GET /sitelongitude", handlerFunc(th.handleSiteLongitude))
	mux.Handle("PUT /sitelongitude", handlerFunc(th.handleSetSiteLongitude))

	mux.Handle("GET /guideraterightascension", handlerFunc(th.handleGuideRateRA))
	mux.Handle("PUT /guideraterightascension", handlerFunc(th.handleSetGuideRateRA))
	mux.Handle("GET /guideratedeclination", handlerFunc(th.handleGuideRateDec))
	mux.Handle("PUT /guideratedeclination", handlerFunc(th.handleSetGuideRateDec))

	mux.Handle("PUT /tracking", handlerFunc(th.handleSetTracking))
	mux.Handle("PUT /trackingrate", handlerFunc(th.handleSetTrackingRate))

	mux.Handle("GET /targetrightascension", handlerFunc(th.handleTargetRA))
	mux.Handle("PUT /targetrightascension", handlerFunc(th.handleSetTargetRA))
	mux.Handle("GET /targetdeclination", handlerFunc(th.handleTargetDec))
	mux.Handle("PUT /targetdeclination", handlerFunc(th.handleSetTargetDec))

	mux.Handle("PUT /slewtocoordinatesasync", handlerFunc(th.handleSlewToCoordinatesAsync))
	mux.Handle("PUT /slewtotargetasync", handlerFunc(th.handleSlewToTargetAsync))
	mux.Handle("PUT /synctocoordinates", handlerFunc(th.handleSyncToCoordinates))
	mux.Handle("PUT /synctotarget", handlerFunc(th.handleSyncToTarget))
	mux.Handle("PUT /abortslew", handlerFunc(th.handleAbortSlew))

	mux.Handle("PUT /park", handlerFunc(th.handlePark))
	mux.Handle("PUT /unpark", handlerFunc(th.handleUnpark))
	mux.Handle("PUT /setpark", handlerFunc(th.handleSetPark))
	mux.Handle("PUT /findhome", handlerFunc(th.handleFindHome))

	mux.Handle("PUT /pulseguide", handlerFunc(th.handlePulseGuide))
	mux.Handle("PUT /moveaxis", handlerFunc(th.handleMoveAxis))
}

func constant(value any) http.Handler {
	return handlerFunc(func(Params) (any, error) { return value, nil })
}

func notImplemented() http.Handler {
	return handlerFunc(func(Params) (any, error) { return nil, ErrNotImplemented })
}

func (th *TelescopeHandler) connected() error {
	if !th.dev.Connected() {
		return ErrNotConnected
	}
	return nil
}

func (th *TelescopeHandler) statusProperty(property string) http.Handler {
	return handlerFunc(func(Params) (any, error) {
		if err := th.connected(); err != nil {
			return nil, err
		}
		status, err := th.dev.Status()
		if err != nil {
			return nil, err
		}

		switch property {
		case "athome":
			return status.AtHome, nil
		case "atpark":
			return status.AtPark, nil
		case "declination":
			return status.Declination, nil
		case "ispulseguiding":
			return status.IsPulseGuiding, nil
		case "rightascension":
			return status.RightAscension, nil
		case "sideofpier":
			return status.SideOfPier, nil
		case "slewing":
			return status.Slewing, nil
		case "tracking":
			return status.Tracking, nil
		case "trackingrate":
			return status.TrackingRate, nil
		}
		return nil, fmt.Errorf("%w: property %s", ErrNotImplemented, property)
	})
}

func (th *TelescopeHandler) capability(property string) http.Handler {
	return handlerFunc(func(Params) (any, error) {
		caps := th.dev.Capabilities()

		switch property {
		case "canfindhome":
			return caps.CanFindHome, nil
		case "canpark":
			return caps.CanPark, nil
		case "canpulseguide":
			return caps.CanPulseGuide, nil
		case "cansetguiderates":
			return caps.CanSetGuideRate, nil
		case "cansetpark":
			return caps.CanSetPark, nil
		case "cansettracking":
			return caps.CanSetTracking, nil
		case "canslewasync":
			return caps.CanSlewAsync, nil
		case "cansync":
			return caps.CanSync, nil
		case "canunpark":
			return caps.CanUnpark, nil
		}
		return false, nil
	})
}

func (th *TelescopeHandler) axis(p Params) (TelescopeAxis, error) {
	axis, err := p.Int("Axis")
	if err != nil {
		return 0, err
	}
	if axis < int(AxisPrimary) || axis > int(AxisTertiary) {
		return 0, fmt.Errorf("%w: axis %d", ErrInvalidValue, axis)
	}
	return TelescopeAxis(axis), nil
}

func (th *TelescopeHandler) handleCanMoveAxis(p Params) (any, error) {
	axis, err := th.axis(p)
	if err != nil {
		return nil, err
	}
	return int(axis) < len(th.dev.Capabilities().AxisRates), nil
}

func (th *TelescopeHandler) handleAxisRates(p Params) (any, error) {
	axis, err := th.axis(p)
	if err != nil {
		return nil, err
	}
	rates := th.dev.Capabilities().AxisRates
	if int(axis) >= len(rates) {
		return []Rate{}, nil
	}
	return []Rate{rates[axis]}, nil
}

func (th *TelescopeHandler) handleTrackingRates(Params) (any, error) {
	return th.dev.Capabilities().TrackingRates, nil
}

func (th *TelescopeHandler) handleSiderealTime(Params) (any, error) {
	if err := th.connected(); err != nil {
		return nil, err
	}
	return th.dev.SiderealTime()
}

func (th *TelescopeHandler) handleUTCDate(Params) (any, error) {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), nil
}

func (th *TelescopeHandler) handleSiteLatitude(Params) (any, error) {
	if err := th.connected(); err != nil {
		return nil, err
	}
	return th.dev.SiteLatitude()
}

func (th *TelescopeHandler) handleSetSiteLatitude(p Params) (any, error) {
	latitude, err := p.Float("SiteLatitude")
	if err != nil {
		return nil, err
	}
	if latitude < -90 || latitude > 90 {
		return nil, fmt.Errorf("%w: latitude %v", ErrInvalidValue, latitude)
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.SetSiteLatitude(latitude)
}

func (th *TelescopeHandler) handleSiteLongitude(Params) (any, error) {
	if err := th.connected(); err != nil {
		return nil, err
	}
	return th.dev.SiteLongitude()
}

func (th *TelescopeHandler) handleSetSiteLongitude(p Params) (any, error) {
	longitude, err := p.Float("SiteLongitude")
	if err != nil {
		return nil, err
	}
	if longitude < -180 || longitude > 180 {
		return nil, fmt.Errorf("%w: longitude %v", ErrInvalidValue, longitude)
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.SetSiteLongitude(longitude)
}

func (th *TelescopeHandler) guideRates() (ra, dec float64, err error) {
	if err := th.connected(); err != nil {
		return 0, 0, err
	}
	return th.dev.GuideRates()
}

func (th *TelescopeHandler) handleGuideRateRA(Params) (any, error) {
	ra, _, err := th.guideRates()
	return ra, err
}

func (th *TelescopeHandler) handleGuideRateDec(Params) (any, error) {
	_, dec, err := th.guideRates()
	return dec, err
}

func (th *TelescopeHandler) handleSetGuideRateRA(p Params) (any, error) {
	rate, err := p.Float("GuideRateRightAscension")
	if err != nil {
		return nil, err
	}
	_, dec, err := th.guideRates()
	if err != nil {
		return nil, err
	}
	return nil, th.dev.SetGuideRates(rate, dec)
}

func (th *TelescopeHandler) handleSetGuideRateDec(p Params) (any, error) {
	rate, err := p.Float("GuideRateDeclination")
	if err != nil {
		return nil, err
	}
	ra, _, err := th.guideRates()
	if err != nil {
		return nil, err
	}
	return nil, th.dev.SetGuideRates(ra, rate)
}

func (th *TelescopeHandler) handleSetTracking(p Params) (any, error) {
	tracking, err := p.Bool("Tracking")
	if err != nil {
		return nil, err
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.SetTracking(tracking)
}

func (th *TelescopeHandler) handleSetTrackingRate(p Params) (any, error) {
	rate, err := p.Int("TrackingRate")
	if err != nil {
		return nil, err
	}
	supported := false
	for _, r := range th.dev.Capabilities().TrackingRates {
		supported = supported || int(r) == rate
	}
	if !supported {
		return nil, fmt.Errorf("%w: tracking rate %d", ErrInvalidValue, rate)
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.SetTrackingRate(DriveRate(rate))
}

func coordinates(p Params) (ra, dec float64, err error) {
	if ra, err = p.Float("RightAscension"); err != nil {
		return 0, 0, err
	}
	if dec, err = p.Float("Declination"); err != nil {
		return 0, 0, err
	}
	if err := validCoordinates(ra, dec); err != nil {
		return 0, 0, err
	}
	return ra, dec, nil
}

func validCoordinates(ra, dec float64) error {
	if math.IsNaN(ra) || ra < 0 || ra >= 24 {
		return fmt.Errorf("%w: right ascension %v", ErrInvalidValue, ra)
	}
	if math.IsNaN(dec) || dec < -90 || dec > 90 {
		return fmt.Errorf("%w: declination %v", ErrInvalidValue, dec)
	}
	return nil
}

func (th *TelescopeHandler) target() (ra, dec float64, err error) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.targetRA == nil || th.targetDec == nil {
		return 0, 0, ErrValueNotSet
	}
	return *th.targetRA, *th.targetDec, nil
}

func (th *TelescopeHandler) setTarget(ra, dec float64) {
	th.mu.Lock()
	defer th.mu.Unlock()
	th.targetRA, th.targetDec = &ra, &dec
}

func (th *TelescopeHandler) handleTargetRA(Params) (any, error) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.targetRA == nil {
		return nil, ErrValueNotSet
	}
	return *th.targetRA, nil
}

func (th *TelescopeHandler) handleTargetDec(Params) (any, error) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.targetDec == nil {
		return nil, ErrValueNotSet
	}
	return *th.targetDec, nil
}

func (th *TelescopeHandler) handleSetTargetRA(p Params) (any, error) {
	ra, err := p.Float("TargetRightAscension")
	if err != nil {
		return nil, err
	}
	if ra < 0 || ra >= 24 {
		return nil, fmt.Errorf("%w: right ascension %v", ErrInvalidValue, ra)
	}
	th.mu.Lock()
	defer th.mu.Unlock()
	th.targetRA = &ra
	return nil, nil
}

func (th *TelescopeHandler) handleSetTargetDec(p Params) (any, error) {
	dec, err := p.Float("TargetDeclination")
	if err != nil {
		return nil, err
	}
	if dec < -90 || dec > 90 {
		return nil, fmt.Errorf("%w: declination %v", ErrInvalidValue, dec)
	}
	th.mu.Lock()
	defer th.mu.Unlock()
	th.targetDec = &dec
	return nil, nil
}

func (th *TelescopeHandler) slew(ra, dec float64) error {
	if err := th.connected(); err != nil {
		return err
	}
	status, err := th.dev.Status()
	if err != nil {
		return err
	}
	if status.AtPark {
		return ErrInvalidWhileParked
	}
	return th.dev.SlewToCoordinatesAsync(ra, dec)
}

func (th *TelescopeHandler) handleSlewToCoordinatesAsync(p Params) (any, error) {
	ra, dec, err := coordinates(p)
	if err != nil {
		return nil, err
	}
	th.setTarget(ra, dec)
	return nil, th.slew(ra, dec)
}

func (th *TelescopeHandler) handleSlewToTargetAsync(Params) (any, error) {
	ra, dec, err := th.target()
	if err != nil {
		return nil, err
	}
	return nil, th.slew(ra, dec)
}

func (th *TelescopeHandler) sync(ra, dec float64) error {
	if err := th.connected(); err != nil {
		return err
	}
	return th.dev.SyncToCoordinates(ra, dec)
}

func (th *TelescopeHandler) handleSyncToCoordinates(p Params) (any, error) {
	ra, dec, err := coordinates(p)
	if err != nil {
		return nil, err
	}
	th.setTarget(ra, dec)
	return nil, th.sync(ra, dec)
}

func (th *TelescopeHandler) handleSyncToTarget(Params) (any, error) {
	ra, dec, err := th.target()
	if err != nil {
		return nil, err
	}
	return nil, th.sync(ra, dec)
}

// connectedCall runs a parameterless device method once connected.
func (th *TelescopeHandler) connectedCall(call func() error) (any, error) {
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, call()
}

func (th *TelescopeHandler) handleAbortSlew(Params) (any, error) {
	return th.connectedCall(th.dev.AbortSlew)
}

func (th *TelescopeHandler) handlePark(Params) (any, error) {
	return th.connectedCall(th.dev.Park)
}

func (th *TelescopeHandler) handleUnpark(Params) (any, error) {
	return th.connectedCall(th.dev.Unpark)
}

func (th *TelescopeHandler) handleSetPark(Params) (any, error) {
	return th.connectedCall(th.dev.SetPark)
}

func (th *TelescopeHandler) handleFindHome(Params) (any, error) {
	return th.connectedCall(th.dev.FindHome)
}

func (th *TelescopeHandler) handlePulseGuide(p Params) (any, error) {
	direction, err := p.Int("Direction")
	if err != nil {
		return nil, err
	}
	if direction < int(GuideNorth) || direction > int(GuideWest) {
		return nil, fmt.Errorf("%w: guide direction %d", ErrInvalidValue, direction)
	}
	duration, err := p.Int("Duration")
	if err != nil {
		return nil, err
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: guide duration %d", ErrInvalidValue, duration)
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.PulseGuide(GuideDirection(direction), time.Duration(duration)*time.Millisecond)
}

func (th *TelescopeHandler) handleMoveAxis(p Params) (any, error) {
	axis, err := th.axis(p)
	if err != nil {
		return nil, err
	}
	rate, err := p.Float("Rate")
	if err != nil {
		return nil, err
	}
	rates := th.dev.Capabilities().AxisRates
	if int(axis) >= len(rates) {
		return nil, fmt.Errorf("%w: axis %d cannot be moved", ErrInvalidValue, axis)
	}
	if r := math.Abs(rate); r > rates[axis].Maximum || (r != 0 && r < rates[axis].Minimum) {
		return nil, fmt.Errorf("%w: rate %v outside %v to %v", ErrInvalidValue, rate, rates[axis].Minimum, rates[axis].Maximum)
	}
	if err := th.connected(); err != nil {
		return nil, err
	}
	return nil, th.dev.MoveAxis(axis, rate)
}
