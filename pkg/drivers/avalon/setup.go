package avalon

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func (d *Driver) HandleSetup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := d.store.GetConfig()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		d.renderSetupForm(w, cfg, false, "")

	case http.MethodPost:
		cfg, err := parseTelescopeSetupForm(r)
		if err != nil {
			d.renderSetupForm(w, cfg, false, err.Error())
			return
		}

		d.logger.Infof("Setting telescope config: %+v", cfg)
		if err := d.store.SetConfig(cfg); err != nil {
			d.renderSetupForm(w, cfg, false, err.Error())
			return
		}
		d.applyLive(cfg)

		d.renderSetupForm(w, cfg, true, "")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// applyLive applies the settings that do not need a reconnect.
func (d *Driver) applyLive(cfg Config) {
	mount, err := d.connectedMount()
	if err != nil {
		return
	}
	if err := mount.SetRequestDelay(cfg.requestDelay()); err != nil {
		d.logger.Errorf("Failed to apply request delay: %v", err)
	}
	mount.SetPulseGuiding(cfg.PulseGuiding)
}

func (d *Driver) renderSetupForm(w http.ResponseWriter, cfg Config, success bool, err string) {
	data := struct {
		Config
		Connected bool
		Success   bool
		Error     string
	}{cfg, d.Connected(), success, err}

	if err := d.tmpl.ExecuteTemplate(w, "telescope_setup.html", data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		d.logger.Errorf("Error rendering template: %v", err)
	}
}

func parseTelescopeSetupForm(r *http.Request) (Config, error) {
	if err := r.ParseForm(); err != nil {
		return Config{}, fmt.Errorf("error parsing form: %v", err)
	}

	cfg := defaultConfig
	cfg.SerialPort = strings.TrimSpace(r.FormValue("serial-port"))
	cfg.Simulate = r.FormValue("simulate") == "true"
	cfg.PulseGuiding = r.FormValue("pulse-guiding") == "true"
	cfg.SyncLocation = r.FormValue("sync-location") == "true"

	var err error
	if cfg.BaudRate, err = getFormInt(r, "baud-rate"); err != nil {
		return cfg, err
	}
	if cfg.RequestDelay, err = getFormInt(r, "request-delay"); err != nil {
		return cfg, err
	}
	if cfg.PollInterval, err = getFormInt(r, "poll-interval"); err != nil {
		return cfg, err
	}
	if cfg.Latitude, err = getFormFloat(r, "latitude"); err != nil {
		return cfg, err
	}
	if cfg.Longitude, err = getFormFloat(r, "longitude"); err != nil {
		return cfg, err
	}

	cfg.MQTT = MQTTConfig{
		Enabled:   r.FormValue("mqtt-enabled") == "true",
		Host:      strings.TrimSpace(r.FormValue("mqtt-host")),
		Username:  r.FormValue("mqtt-username"),
		Password:  r.FormValue("mqtt-password"),
		TopicRoot: strings.TrimSpace(r.FormValue("mqtt-topic-root")),
	}

	return cfg, cfg.Validate()
}

func getFormInt(r *http.Request, key string) (int, error) {
	value := r.FormValue(key)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return intValue, nil
}

func getFormFloat(r *http.Request, key string) (float64, error) {
	value := r.FormValue(key)
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return floatValue, nil
}
