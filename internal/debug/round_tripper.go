package debug

import (
	"net/http"
	"net/http/httputil"
)

// headers which carry credentials of the OAuth session or a storage account
var secretHeaders = []string{
	"Authorization",
	"X-Auth-Token",
	"X-Auth-Key",
	"X-Amz-Security-Token",
}

type loggingRoundTripper struct {
	http.RoundTripper
}

// RoundTripper returns an http.RoundTripper which logs all requests and
// responses (without bodies) when debug output is enabled. Otherwise upstream
// is returned unchanged.
func RoundTripper(upstream http.RoundTripper) http.RoundTripper {
	if !opts.isEnabled {
		return upstream
	}
	return loggingRoundTripper{upstream}
}

func redactHeader(header http.Header) map[string][]string {
	removed := make(map[string][]string)
	for _, hdr := range secretHeaders {
		if v, ok := header[hdr]; ok {
			removed[hdr] = v
			header[hdr] = []string{"**redacted**"}
		}
	}
	return removed
}

func restoreHeader(header http.Header, orig map[string][]string) {
	for hdr, v := range orig {
		header[hdr] = v
	}
}

func (tr loggingRoundTripper) RoundTrip(req *http.Request) (res *http.Response, err error) {
	orig := redactHeader(req.Header)
	trace, err := httputil.DumpRequestOut(req, false)
	restoreHeader(req.Header, orig)
	if err != nil {
		Log("DumpRequestOut() error: %v\n", err)
	} else {
		Log("------------  HTTP REQUEST -----------\n%s", trace)
	}

	res, err = tr.RoundTripper.RoundTrip(req)
	if err != nil {
		Log("RoundTrip() returned error: %v", err)
	}

	if res != nil {
		trace, err := httputil.DumpResponse(res, false)
		if err != nil {
			Log("DumpResponse() error: %v\n", err)
		} else {
			Log("------------  HTTP RESPONSE ----------\n%s", trace)
		}
	}

	return res, err
}
