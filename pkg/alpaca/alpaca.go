// Package alpaca implements the ASCOM Alpaca HTTP surface for the devices
// served by this process.
//
// Documentation: https://ascom-standards.org/api/
package alpaca

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Global transaction counter
var txCounter atomic.Uint32

type baseResponse struct {
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
	Value               any    `json:"Value,omitempty"`
}

// Params are the request parameters. Alpaca parameter names are matched
// case-insensitively.
type Params url.Values

func (p Params) lookup(name string) (string, bool) {
	for key, values := range p {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

// String returns the named parameter.
func (p Params) String(name string) (string, error) {
	value, ok := p.lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: missing parameter %s", ErrInvalidValue, name)
	}
	return value, nil
}

// Float returns the named parameter as a float.
func (p Params) Float(name string) (float64, error) {
	value, err := p.String(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, name, value)
	}
	return f, nil
}

// Int returns the named parameter as an integer.
func (p Params) Int(name string) (int, error) {
	value, err := p.String(name)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidValue, name, value)
	}
	return i, nil
}

// Bool returns the named parameter as a boolean.
func (p Params) Bool(name string) (bool, error) {
	value, err := p.String(name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidValue, name, value)
	}
	return b, nil
}

// Helper to read and parse the request body as URL-encoded data.
func parseBodyParams(r *http.Request) (url.Values, error) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	// Reset the body so it can be read again later.
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return url.ParseQuery(string(bodyBytes))
}

func requestParams(r *http.Request) (Params, error) {
	if r.Method == http.MethodPut {
		// PUT requests have the parameters in the body.
		params, err := parseBodyParams(r)
		return Params(params), err
	}
	// GET requests have the parameters in the URL.
	return Params(r.URL.Query()), nil
}

// clientTxID obtains the client transaction ID. It is optional; a missing
// one is reported as zero.
func clientTxID(params Params) (uint32, error) {
	value, ok := params.lookup("ClientTransactionID")
	if !ok {
		return 0, nil
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.New("ClientTransactionID must be a non-negative integer")
	}
	return uint32(id), nil
}

// handlerFunc adapts a function returning a value or an error to an Alpaca
// JSON endpoint.
type handlerFunc func(p Params) (any, error)

func (f handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	txID, err := clientTxID(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response := baseResponse{
		ServerTransactionID: txCounter.Add(1),
		ClientTransactionID: txID,
	}

	value, err := f(params)
	if err != nil {
		response.ErrorNumber = errorNumber(err)
		response.ErrorMessage = err.Error()
		log.Debugf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		response.Value = value
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
