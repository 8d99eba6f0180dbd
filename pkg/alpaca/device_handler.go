package alpaca

import (
	"net/http"
)

// DeviceHandler serves the endpoints common to all device types.
type DeviceHandler struct {
	dev Device
}

func NewDeviceHandler(dev Device) *DeviceHandler {
	return &DeviceHandler{dev}
}

func (h *DeviceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /name", handlerFunc(h.handleName))
	mux.Handle("GET /description", handlerFunc(h.handleDescription))
	mux.Handle("GET /driverinfo", handlerFunc(h.handleDriverInfo))
	mux.Handle("GET /driverversion", handlerFunc(h.handleDriverVersion))
	mux.Handle("GET /interfaceversion", handlerFunc(h.handleInterfaceVersion))
	mux.Handle("GET /devicestate", handlerFunc(h.handleState))

	mux.Handle("GET /connected", handlerFunc(h.handleConnected))
	mux.Handle("PUT /connected", handlerFunc(h.handleSetConnected))
	mux.Handle("GET /connecting", handlerFunc(h.handleConnecting))
	mux.Handle("PUT /connect", handlerFunc(h.handleConnect))
	mux.Handle("PUT /disconnect", handlerFunc(h.handleDisconnect))

	mux.Handle("GET /supportedactions", handlerFunc(h.handleSupportedActions))
	mux.Handle("PUT /action", handlerFunc(h.handleAction))
}

func (h *DeviceHandler) handleName(Params) (any, error) {
	return h.dev.DeviceInfo().Name, nil
}

func (h *DeviceHandler) handleDescription(Params) (any, error) {
	return h.dev.DeviceInfo().Description, nil
}

func (h *DeviceHandler) handleDriverInfo(Params) (any, error) {
	return h.dev.DriverInfo().Name, nil
}

func (h *DeviceHandler) handleDriverVersion(Params) (any, error) {
	return h.dev.DriverInfo().Version, nil
}

func (h *DeviceHandler) handleInterfaceVersion(Params) (any, error) {
	return h.dev.DriverInfo().InterfaceVersion, nil
}

func (h *DeviceHandler) handleState(Params) (any, error) {
	return h.dev.GetState(), nil
}

func (h *DeviceHandler) handleConnected(Params) (any, error) {
	return h.dev.Connected(), nil
}

func (h *DeviceHandler) handleSetConnected(p Params) (any, error) {
	connected, err := p.Bool("Connected")
	if err != nil {
		return nil, err
	}
	if connected == h.dev.Connected() {
		return nil, nil
	}
	if connected {
		return nil, h.dev.Connect()
	}
	return nil, h.dev.Disconnect()
}

func (h *DeviceHandler) handleConnecting(Params) (any, error) {
	return h.dev.Connecting(), nil
}

func (h *DeviceHandler) handleConnect(Params) (any, error) {
	return nil, h.dev.Connect()
}

func (h *DeviceHandler) handleDisconnect(Params) (any, error) {
	return nil, h.dev.Disconnect()
}

func (h *DeviceHandler) handleSupportedActions(Params) (any, error) {
	return h.dev.SupportedActions(), nil
}

func (h *DeviceHandler) handleAction(p Params) (any, error) {
	name, err := p.String("Action")
	if err != nil {
		return nil, err
	}
	// Parameters may legitimately be empty.
	params, _ := p.lookup("Parameters")
	return h.dev.Action(name, params)
}
