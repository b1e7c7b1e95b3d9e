package api

import (
	"encoding/json"
	"net/http"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/info"
	"github.com/safing/mibis/metrics"
	"github.com/safing/mibis/modules"
)

func registerMetaEndpoints() error {
	if err := RegisterEndpoint(Endpoint{
		Path:        "endpoints",
		MimeType:    MimeTypeJSON,
		DataFunc:    listEndpoints,
		Name:        "Export API Endpoints",
		Description: "Returns a list of all registered endpoints and their metadata.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "ping",
		ActionFunc:  ping,
		Name:        "Ping",
		Description: "Pong.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "info",
		StructFunc:  getInfo,
		Name:        "Program Info",
		Description: "Returns the name and version of the program.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "config",
		MimeType:    MimeTypeJSON,
		DataFunc:    exportConfig,
		Name:        "Export Configuration",
		Description: "Returns the active configuration.",
		Parameters: []Parameter{{
			Method:      http.MethodGet,
			Field:       "user",
			Value:       "true",
			Description: "Only return values set by the user.",
		}},
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "modules",
		StructFunc:  listModules,
		Name:        "Modules",
		Description: "Returns the status of all modules.",
	}); err != nil {
		return err
	}

	RegisterHandleFunc("/metrics", serveMetrics)
	return nil
}

func listEndpoints(ar *Request) (data []byte, err error) {
	return json.Marshal(ExportEndpoints())
}

func ping(ar *Request) (msg string, err error) {
	return "Pong.", nil
}

func getInfo(ar *Request) (i interface{}, err error) {
	return info.GetInfo(), nil
}

func exportConfig(ar *Request) (data []byte, err error) {
	return config.ExportJSON(ar.Request.URL.Query().Get("user") == "true")
}

func listModules(ar *Request) (i interface{}, err error) {
	return modules.Status(), nil
}

func serveMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w)
}
