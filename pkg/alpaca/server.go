// Documentation: https://ascom-standards.org/api/?urls.primaryName=ASCOM+Alpaca+Management+API

package alpaca

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ServerDescription struct {
	Name                string `json:"ServerName"`
	Manufacturer        string `json:"Manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion"`
	Location            string `json:"Location"`
}

// Server is an Alpaca management server that provides information
// about the server and the devices it manages.
type Server struct {
	description ServerDescription
	devices     []Device

	db      *Store
	tmpl    *template.Template
	metrics http.Handler
}

// NewServer creates a new Server instance. Name and location of the
// description are taken from the store. metrics may be nil.
func NewServer(description ServerDescription, devices []Device, db *Store, tmpl *template.Template, metrics http.Handler) *Server {
	server := Server{
		description: description,
		devices:     devices,
		db:          db,
		tmpl:        tmpl,
		metrics:     metrics,
	}

	return &server
}

type DeviceHTTPHandler interface {
	RegisterRoutes(mux *http.ServeMux)
}

func devicePath(info DeviceInfo) string {
	return fmt.Sprintf("%s/%d", strings.ToLower(info.Type), info.Number)
}

func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()

	// Add management routes
	r.Handle("GET /management/apiversions", handlerFunc(s.handleAPIVersions))
	r.Handle("GET /management/v1/description", handlerFunc(s.handleDescription))
	r.Handle("GET /management/v1/configureddevices", handlerFunc(s.handleConfiguredDevices))
	r.HandleFunc("/setup", s.handleSetup)
	if s.metrics != nil {
		r.Handle("GET /metrics", s.metrics)
	}

	// Create handlers for each device
	for _, dev := range s.devices {
		mux := http.NewServeMux()
		var handler DeviceHTTPHandler

		switch d := dev.(type) {
		case Telescope:
			log.Infof("Creating new TelescopeHandler for %s", dev.DeviceInfo().Name)
			handler = NewTelescopeHandler(d)
		default:
			log.Warnf("Unknown device type: %T", dev)
			handler = NewDeviceHandler(dev)
		}
		handler.RegisterRoutes(mux)

		path := devicePath(dev.DeviceInfo())
		apiPrefix := "/api/v1/" + path
		r.Handle(apiPrefix+"/", http.StripPrefix(apiPrefix, mux))

		if sh, ok := dev.(SetupHandler); ok {
			r.HandleFunc("/setup/v1/"+path+"/setup", sh.HandleSetup)
		}
	}

	return r
}

func (s *Server) handleAPIVersions(Params) (any, error) {
	return []int{1}, nil
}

func (s *Server) serverDescription() ServerDescription {
	desc := s.description
	if cfg, err := s.db.GetConfig(); err == nil {
		desc.Name = cfg.Name
		desc.Location = cfg.Location
	}
	return desc
}

func (s *Server) handleDescription(Params) (any, error) {
	return s.serverDescription(), nil
}

func (s *Server) handleConfiguredDevices(Params) (any, error) {
	deviceInfo := make([]DeviceInfo, 0, len(s.devices))
	for _, device := range s.devices {
		deviceInfo = append(deviceInfo, device.DeviceInfo())
	}

	return deviceInfo, nil
}

// handleSetup returns a user interface for setting up the server.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.db.GetConfig()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.renderSetupForm(w, cfg, false, "")

	case http.MethodPost:
		cfg, err := parseSetupForm(r)
		if err != nil {
			s.renderSetupForm(w, cfg, false, err.Error())
			return
		}

		log.Infof("Setting server config: %+v", cfg)
		if err := s.db.SetConfig(cfg); err != nil {
			s.renderSetupForm(w, cfg, false, err.Error())
			return
		}
		s.renderSetupForm(w, cfg, true, "")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type deviceLink struct {
	DeviceInfo
	SetupURL string
}

func (s *Server) renderSetupForm(w http.ResponseWriter, cfg ServerConfig, success bool, err string) {
	links := make([]deviceLink, 0, len(s.devices))
	for _, dev := range s.devices {
		link := deviceLink{DeviceInfo: dev.DeviceInfo()}
		if _, ok := dev.(SetupHandler); ok {
			link.SetupURL = "/setup/v1/" + devicePath(link.DeviceInfo) + "/setup"
		}
		links = append(links, link)
	}

	data := struct {
		ServerConfig
		Devices []deviceLink
		Success bool
		Error   string
	}{cfg, links, success, err}

	if err := s.tmpl.ExecuteTemplate(w, "setup.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseSetupForm(r *http.Request) (ServerConfig, error) {
	if err := r.ParseForm(); err != nil {
		return ServerConfig{}, fmt.Errorf("error parsing form: %v", err)
	}

	cfg := ServerConfig{
		Name:     strings.TrimSpace(r.FormValue("server-name")),
		Location: strings.TrimSpace(r.FormValue("location")),
	}
	if cfg.Name == "" {
		return cfg, fmt.Errorf("server name cannot be empty")
	}
	return cfg, nil
}
