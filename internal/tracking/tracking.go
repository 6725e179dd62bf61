// Package tracking parses the attribution metadata the storefront sends
// alongside a checkout request. The data rides in the Checkout-Attribution
// header as an RFC 8941 structured-field dictionary and ends up as opaque
// annotations on the pending order.
package tracking

import (
	"fmt"

	"github.com/dunglas/httpsfv"

	"storefront-checkout/internal/model"
)

// HeaderName carries the attribution dictionary.
const HeaderName = "Checkout-Attribution"

// ParseHeader parses a Checkout-Attribution header value. Unknown keys are
// ignored; an empty header yields nil. Malformed input is an error so the
// storefront notices broken instrumentation instead of silently losing
// attribution.
func ParseHeader(value string) (*model.TrackingContext, error) {
	if value == "" {
		return nil, nil
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{value})
	if err != nil {
		return nil, fmt.Errorf("parsing attribution header: %w", err)
	}

	get := func(key string) string {
		member, ok := dict.Get(key)
		if !ok {
			return ""
		}
		item, ok := member.(httpsfv.Item)
		if !ok {
			return ""
		}
		switch v := item.Value.(type) {
		case string:
			return v
		case httpsfv.Token:
			return string(v)
		}
		return ""
	}

	t := &model.TrackingContext{
		SessionID:   get("session-id"),
		ClientID:    get("client-id"),
		UTMSource:   get("utm-source"),
		UTMMedium:   get("utm-medium"),
		UTMCampaign: get("utm-campaign"),
		UTMContent:  get("utm-content"),
		UTMTerm:     get("utm-term"),
		FBClid:      get("fbclid"),
		FBC:         get("fbc"),
		FBP:         get("fbp"),
		CampaignID:  get("campaign-id"),
		AdsetID:     get("adset-id"),
		AdID:        get("ad-id"),
		Placement:   get("placement"),
		GClid:       get("gclid"),
		Referrer:    get("referrer"),
		LandingPage: get("landing-page"),
		DeviceType:  get("device-type"),
		Language:    get("language"),
		Timezone:    get("timezone"),
	}

	if *t == (model.TrackingContext{}) {
		return nil, nil
	}
	return t, nil
}

// Merge overlays header-derived attribution onto body-provided tracking.
// The request body wins on conflicts: it is set deliberately by the
// storefront, the header by edge instrumentation.
func Merge(body, header *model.TrackingContext) *model.TrackingContext {
	if body == nil {
		return header
	}
	if header == nil {
		return body
	}

	merged := *body
	pick := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	pick(&merged.SessionID, header.SessionID)
	pick(&merged.ClientID, header.ClientID)
	pick(&merged.UTMSource, header.UTMSource)
	pick(&merged.UTMMedium, header.UTMMedium)
	pick(&merged.UTMCampaign, header.UTMCampaign)
	pick(&merged.UTMContent, header.UTMContent)
	pick(&merged.UTMTerm, header.UTMTerm)
	pick(&merged.FBClid, header.FBClid)
	pick(&merged.FBC, header.FBC)
	pick(&merged.FBP, header.FBP)
	pick(&merged.CampaignID, header.CampaignID)
	pick(&merged.AdsetID, header.AdsetID)
	pick(&merged.AdID, header.AdID)
	pick(&merged.Placement, header.Placement)
	pick(&merged.GClid, header.GClid)
	pick(&merged.Referrer, header.Referrer)
	pick(&merged.LandingPage, header.LandingPage)
	pick(&merged.DeviceType, header.DeviceType)
	pick(&merged.Language, header.Language)
	pick(&merged.Timezone, header.Timezone)
	return &merged
}
