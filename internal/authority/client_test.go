package authority

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const permitDetailsResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <GetPermitDetailsResponse xmlns="http://tempuri.org/">
      <GetPermitDetailsResult>
        <PermitDetails>
          <PermitNo> PMA1001 </PermitNo>
          <ContainerNo>MSKU1234567</ContainerNo>
          <ContainerSize>40</ContainerSize>
          <ContainerType>GP</ContainerType>
          <ContainerStatus>FCL</ContainerStatus>
          <VehicleNo>MH12AB1234</VehicleNo>
          <LineCode>MSK</LineCode>
          <ValidTill>2030-01-02T15:04:05</ValidTill>
        </PermitDetails>
      </GetPermitDetailsResult>
    </GetPermitDetailsResponse>
  </soap:Body>
</soap:Envelope>`

const permitRecordResponse = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <GetPermitDetailsResponse>
      <PermitRecord>
        <permitNumber>PMA1001</permitNumber>
        <containerNumber>MSKU1234567</containerNumber>
        <containerSize>40</containerSize>
        <containerType>GP</containerType>
        <containerStatus>FCL</containerStatus>
        <vehicleNumber>MH12AB1234</vehicleNumber>
        <lineCode>MSK</lineCode>
        <isValid>Y</isValid>
      </PermitRecord>
    </GetPermitDetailsResponse>
  </s:Body>
</s:Envelope>`

const faultResponse = `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>soap:Server</faultcode>
      <faultstring>Permit service down</faultstring>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

func TestNormalize_BothShapesAgree(t *testing.T) {
	a, err := Normalize([]byte(permitDetailsResponse), time.UTC)
	if err != nil {
		t.Fatalf("permit-details: %v", err)
	}
	b, err := Normalize([]byte(permitRecordResponse), time.UTC)
	if err != nil {
		t.Fatalf("permit-record: %v", err)
	}

	if a.Shape != ShapePermitDetails || b.Shape != ShapePermitRecord {
		t.Fatalf("shapes = %q, %q", a.Shape, b.Shape)
	}

	for _, f := range []struct {
		name string
		a, b string
	}{
		{"permitNumber", a.PermitNumber, b.PermitNumber},
		{"containerNumber", a.ContainerNumber, b.ContainerNumber},
		{"containerSize", a.ContainerSize, b.ContainerSize},
		{"containerType", a.ContainerType, b.ContainerType},
		{"containerStatus", a.ContainerStatus, b.ContainerStatus},
		{"vehicleNumber", a.VehicleNumber, b.VehicleNumber},
		{"lineCode", a.LineCode, b.LineCode},
	} {
		if f.a != f.b {
			t.Errorf("%s differs between shapes: %q vs %q", f.name, f.a, f.b)
		}
	}
	if a.PermitNumber != "PMA1001" {
		t.Errorf("PermitNumber = %q, want trimmed PMA1001", a.PermitNumber)
	}

	want := time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)
	if a.ExpiresAt == nil || !a.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", a.ExpiresAt, want)
	}
	if a.Valid != nil {
		t.Errorf("permit-details should carry no flag, got %v", *a.Valid)
	}
	if b.Valid == nil || !*b.Valid {
		t.Errorf("Valid = %v, want true", b.Valid)
	}
	if b.ExpiresAt != nil {
		t.Errorf("permit-record without validTill should carry no expiry, got %v", b.ExpiresAt)
	}
}

func TestNormalize_Location(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	rec, err := Normalize([]byte(permitDetailsResponse), loc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := time.Date(2030, 1, 2, 15, 4, 5, 0, loc)
	if !rec.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want)
	}
}

func TestNormalize_OptionalFieldsAbsent(t *testing.T) {
	raw := `<Envelope><Body><GetPermitDetailsResponse><PermitRecord>
		<containerNumber>C2</containerNumber><isValid>true</isValid>
	</PermitRecord></GetPermitDetailsResponse></Body></Envelope>`
	rec, err := Normalize([]byte(raw), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.PermitNumber != "" || rec.VehicleNumber != "" {
		t.Errorf("absent fields should be empty: %+v", rec)
	}
	if rec.ContainerNumber != "C2" {
		t.Errorf("ContainerNumber = %q", rec.ContainerNumber)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	for _, tc := range []struct {
		name, raw string
	}{
		{"no detail block", `<Envelope><Body><GetPermitDetailsResponse><GetPermitDetailsResult/></GetPermitDetailsResponse></Body></Envelope>`},
		{"empty body", `<Envelope><Body/></Envelope>`},
		{"not xml", `{"permit":"PMA1001"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize([]byte(tc.raw), time.UTC)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want time.Time
		nil_ bool
	}{
		{in: "2026-05-01T10:00:00Z", want: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-05-01T10:00:00+05:30", want: time.Date(2026, 5, 1, 4, 30, 0, 0, time.UTC)},
		{in: "2026-05-01 10:00:00", want: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-05-01", want: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{in: "01/05/2026", want: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{in: "", nil_: true},
		{in: "soon", nil_: true},
	} {
		got := parseTimestamp(tc.in, time.UTC)
		if tc.nil_ {
			if got != nil {
				t.Errorf("parseTimestamp(%q) = %v, want nil", tc.in, got)
			}
			continue
		}
		if got == nil || !got.Equal(tc.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseFlag(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "Y": true, "1": true, "yes": true, "false": false, "N": false, "0": false} {
		got := parseFlag(in)
		if got == nil || *got != want {
			t.Errorf("parseFlag(%q) = %v, want %v", in, got, want)
		}
	}
	if parseFlag("maybe") != nil || parseFlag("") != nil {
		t.Error("unrecognized flags should be absent")
	}
}

func TestBuildEnvelope_EscapesPermit(t *testing.T) {
	body, err := buildEnvelope(`PM<&>1`)
	if err != nil {
		t.Fatalf("buildEnvelope: %v", err)
	}
	if !strings.Contains(string(body), "<PermitNo>PM&lt;&amp;&gt;1</PermitNo>") {
		t.Errorf("permit not escaped: %s", body)
	}
}

func TestClient_Lookup(t *testing.T) {
	var gotAction, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, permitDetailsResponse)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "http://tempuri.org/GetPermitDetails")
	rec, err := c.Lookup(context.Background(), "PMA1001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.PermitNumber != "PMA1001" || rec.Shape != ShapePermitDetails {
		t.Errorf("rec = %+v", rec)
	}
	if gotAction != `"http://tempuri.org/GetPermitDetails"` {
		t.Errorf("SOAPAction = %q", gotAction)
	}
	if !strings.HasPrefix(gotType, "text/xml") {
		t.Errorf("Content-Type = %q", gotType)
	}
	if !strings.Contains(gotBody, "<PermitNo>PMA1001</PermitNo>") {
		t.Errorf("request body missing permit: %s", gotBody)
	}
}

func TestClient_LookupFailures(t *testing.T) {
	for _, tc := range []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"fault with 500", http.StatusInternalServerError, faultResponse, ErrUnavailable},
		{"fault with 200", http.StatusOK, faultResponse, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, "<html>upstream</html>", ErrUnavailable},
		{"missing block", http.StatusOK, `<Envelope><Body><GetPermitDetailsResponse/></Body></Envelope>`, ErrMalformedResponse},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "act").Lookup(context.Background(), "PMA1001")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestClient_LookupTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "act", WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Lookup(context.Background(), "PMA1001")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("lookup was not bounded: took %v", elapsed)
	}
}

func TestClient_LookupConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "act").Lookup(context.Background(), "PMA1001")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
