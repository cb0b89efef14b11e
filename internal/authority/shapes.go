package authority

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// Shape names of the response schemas seen in the wild.
const (
	ShapePermitDetails = "permit-details"
	ShapePermitRecord  = "permit-record"
)

// normalizer parses one known response shape. ok is false when the shape's
// core permit block is absent, so the next normalizer can try.
type normalizer struct {
	shape string
	parse func(raw []byte, loc *time.Location) (rec *model.AuthorityRecord, ok bool, err error)
}

// normalizers is the closed set of supported response shapes, tried in order.
var normalizers = []normalizer{
	{shape: ShapePermitDetails, parse: parsePermitDetails},
	{shape: ShapePermitRecord, parse: parsePermitRecord},
}

// Normalize maps an authority SOAP response onto the canonical record.
func Normalize(raw []byte, loc *time.Location) (*model.AuthorityRecord, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, n := range normalizers {
		rec, ok, err := n.parse(raw, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, n.shape, err)
		}
		if ok {
			rec.Shape = n.shape
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: permit detail block not found", ErrMalformedResponse)
}

// permitDetails is the older PascalCase shape carrying an expiry timestamp.
type permitDetails struct {
	PermitNo        string `xml:"PermitNo"`
	ContainerNo     string `xml:"ContainerNo"`
	ContainerSize   string `xml:"ContainerSize"`
	ContainerType   string `xml:"ContainerType"`
	ContainerStatus string `xml:"ContainerStatus"`
	VehicleNo       string `xml:"VehicleNo"`
	LineCode        string `xml:"LineCode"`
	ValidTill       string `xml:"ValidTill"`
}

type permitDetailsEnvelope struct {
	Details *permitDetails `xml:"Body>GetPermitDetailsResponse>GetPermitDetailsResult>PermitDetails"`
}

func parsePermitDetails(raw []byte, loc *time.Location) (*model.AuthorityRecord, bool, error) {
	var env permitDetailsEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	if env.Details == nil {
		return nil, false, nil
	}
	d := env.Details
	rec := &model.AuthorityRecord{
		PermitNumber:    clean(d.PermitNo),
		ContainerNumber: clean(d.ContainerNo),
		ContainerSize:   clean(d.ContainerSize),
		ContainerType:   clean(d.ContainerType),
		ContainerStatus: clean(d.ContainerStatus),
		VehicleNumber:   clean(d.VehicleNo),
		LineCode:        clean(d.LineCode),
		ExpiresAt:       parseTimestamp(d.ValidTill, loc),
	}
	return rec, true, nil
}

// permitRecord is the newer camelCase shape carrying a validity flag.
type permitRecord struct {
	PermitNumber    string `xml:"permitNumber"`
	ContainerNumber string `xml:"containerNumber"`
	ContainerSize   string `xml:"containerSize"`
	ContainerType   string `xml:"containerType"`
	ContainerStatus string `xml:"containerStatus"`
	VehicleNumber   string `xml:"vehicleNumber"`
	LineCode        string `xml:"lineCode"`
	IsValid         string `xml:"isValid"`
	ValidTill       string `xml:"validTill"`
}

type permitRecordEnvelope struct {
	Record *permitRecord `xml:"Body>GetPermitDetailsResponse>PermitRecord"`
}

func parsePermitRecord(raw []byte, loc *time.Location) (*model.AuthorityRecord, bool, error) {
	var env permitRecordEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	if env.Record == nil {
		return nil, false, nil
	}
	r := env.Record
	rec := &model.AuthorityRecord{
		PermitNumber:    clean(r.PermitNumber),
		ContainerNumber: clean(r.ContainerNumber),
		ContainerSize:   clean(r.ContainerSize),
		ContainerType:   clean(r.ContainerType),
		ContainerStatus: clean(r.ContainerStatus),
		VehicleNumber:   clean(r.VehicleNumber),
		LineCode:        clean(r.LineCode),
		Valid:           parseFlag(r.IsValid),
		ExpiresAt:       parseTimestamp(r.ValidTill, loc),
	}
	return rec, true, nil
}

func clean(s string) string {
	return strings.TrimSpace(s)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// parseTimestamp returns nil for empty or unparseable values; the policy
// treats an absent indicator as expired.
func parseTimestamp(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseFlag(s string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "y", "yes", "1", "valid":
		v = true
	case "false", "n", "no", "0", "invalid":
		v = false
	default:
		return nil
	}
	return &v
}
