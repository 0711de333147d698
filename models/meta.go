package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SpotAssetOffset separates spot pair indices from perpetual indices in the
// venue's shared asset address space.
const SpotAssetOffset = 10000

// Meta describes the perpetual universe.
type Meta struct {
	Universe []AssetMeta `json:"universe"`
}

// AssetMeta is the static description of one tradable perpetual instrument.
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage *int   `json:"maxLeverage,omitempty"`
	IsDelisted  *bool  `json:"isDelisted,omitempty"`
}

// AssetContext carries the live numeric state of one perpetual asset. All
// numeric fields stay decimal strings to preserve venue precision; consumers
// parse them lazily.
type AssetContext struct {
	Funding      string     `json:"funding"`
	OpenInterest string     `json:"openInterest"`
	PrevDayPx    string     `json:"prevDayPx"`
	DayNtlVlm    string     `json:"dayNtlVlm"`
	Premium      *string    `json:"premium,omitempty"`
	OraclePx     string     `json:"oraclePx"`
	MarkPx       string     `json:"markPx"`
	MidPx        *string    `json:"midPx,omitempty"`
	ImpactPxs    *[2]string `json:"impactPxs,omitempty"`
	DayBaseVlm   string     `json:"dayBaseVlm"`
}

// MetaAndAssetCtxs is one element of the metadata feed response. The wire
// format carries no discriminant: the same endpoint yields a metadata object
// or a list of per-asset contexts depending on request mode, so the decode
// goes by structural shape.
type MetaAndAssetCtxs struct {
	Meta *Meta
	Ctxs []AssetContext
}

func (m *MetaAndAssetCtxs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty metadata payload")
	}
	switch trimmed[0] {
	case '{':
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("failed to decode asset metadata: %w", err)
		}
		m.Meta = &meta
		m.Ctxs = nil
	case '[':
		var ctxs []AssetContext
		if err := json.Unmarshal(data, &ctxs); err != nil {
			return fmt.Errorf("failed to decode asset contexts: %w", err)
		}
		m.Meta = nil
		m.Ctxs = ctxs
	default:
		return fmt.Errorf("metadata payload is neither object nor array")
	}
	return nil
}

// SpotMeta describes the spot universe and its token registry.
type SpotMeta struct {
	Universe []SpotAssetMeta `json:"universe"`
	Tokens   []TokenInfo     `json:"tokens"`
}

type SpotAssetMeta struct {
	Tokens      [2]int `json:"tokens"`
	Name        string `json:"name"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

type TokenInfo struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	WeiDecimals int    `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
	IsCanonical bool   `json:"isCanonical"`
}

type SpotAssetContext struct {
	DayNtlVlm         string  `json:"dayNtlVlm"`
	MarkPx            string  `json:"markPx"`
	MidPx             *string `json:"midPx,omitempty"`
	PrevDayPx         string  `json:"prevDayPx"`
	CirculatingSupply string  `json:"circulatingSupply"`
	Coin              string  `json:"coin"`
}

// SpotMetaAndAssetCtxs mirrors MetaAndAssetCtxs for the spot feed.
type SpotMetaAndAssetCtxs struct {
	Meta *SpotMeta
	Ctxs []SpotAssetContext
}

func (m *SpotMetaAndAssetCtxs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return fmt.Errorf("empty spot metadata payload")
	}
	switch trimmed[0] {
	case '{':
		var meta SpotMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("failed to decode spot metadata: %w", err)
		}
		m.Meta = &meta
		m.Ctxs = nil
	case '[':
		var ctxs []SpotAssetContext
		if err := json.Unmarshal(data, &ctxs); err != nil {
			return fmt.Errorf("failed to decode spot asset contexts: %w", err)
		}
		m.Meta = nil
		m.Ctxs = ctxs
	default:
		return fmt.Errorf("spot metadata payload is neither object nor array")
	}
	return nil
}

// FundingRate is the derived funding summary for one perpetual asset.
type FundingRate struct {
	Coin         string `json:"coin"`
	MarkPrice    string `json:"mark_price"`
	IndexPrice   string `json:"index_price"`
	Rate         string `json:"rate"`
	RateEstimate string `json:"rate_estimate"`
	Interval     uint64 `json:"interval"`
	NextApplyTs  uint64 `json:"next_apply_ts"`
	Ts           uint64 `json:"ts"`
}
