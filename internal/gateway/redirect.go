package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
)

// redirectStrategy pulls a redirect URL out of the gateway's "data" field.
type redirectStrategy func(data json.RawMessage) (string, bool)

// Tried in order; the first strategy that yields a URL wins.
var redirectStrategies = []redirectStrategy{
	fromEncodedPayload,
	fromInstrumentResponse,
}

// ExtractRedirectURL returns the hosted-checkout URL from an initiation
// response's data field, or ErrNoRedirectURL.
func ExtractRedirectURL(data json.RawMessage) (string, error) {
	for _, strategy := range redirectStrategies {
		if url, ok := strategy(data); ok {
			return url, nil
		}
	}
	return "", ErrNoRedirectURL
}

// fromEncodedPayload handles data sent as a base64 string wrapping JSON with
// either redirectInfo.url or a flat redirectUrl.
func fromEncodedPayload(data json.RawMessage) (string, bool) {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil || encoded == "" {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}

	var payload struct {
		RedirectInfo struct {
			URL string `json:"url"`
		} `json:"redirectInfo"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return "", false
	}
	if payload.RedirectInfo.URL != "" {
		return payload.RedirectInfo.URL, true
	}
	if payload.RedirectURL != "" {
		return payload.RedirectURL, true
	}
	return "", false
}

// fromInstrumentResponse handles data sent as an object exposing
// instrumentResponse.redirectInfo.url.
func fromInstrumentResponse(data json.RawMessage) (string, bool) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return "", false
	}
	var payload struct {
		InstrumentResponse struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", false
	}
	url := payload.InstrumentResponse.RedirectInfo.URL
	return url, url != ""
}
