package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"hyperflow/logger"
	"hyperflow/models"
)

// InfoClient is the venue metadata feed consumed by the resolver.
type InfoClient interface {
	Info(ctx context.Context, request any, out any) error
}

type infoRequest struct {
	Type string `json:"type"`
}

// venueKey identifies this venue inside the predicted-fundings response,
// which aggregates predictions across several perpetual venues.
const venueKey = "HlPerp"

// Resolver caches the coin-to-asset-index mapping built from the perpetual
// and spot universes and derives funding-rate snapshots. The cache is
// replaced wholesale on Refresh.
type Resolver struct {
	info InfoClient
	log  *logger.Log

	mu         sync.RWMutex
	coinIndex  map[string]int
	szDecimals map[string]int
}

func NewResolver(info InfoClient) *Resolver {
	return &Resolver{
		info:       info,
		log:        logger.GetLogger(),
		coinIndex:  map[string]int{},
		szDecimals: map[string]int{},
	}
}

// Refresh pulls both universes from the metadata feed and rebuilds the
// coin index. Spot pair entries are merged on top of the perpetual index;
// the two address ranges cannot alias because spot indices carry the fixed
// offset.
func (r *Resolver) Refresh(ctx context.Context) error {
	log := r.log.WithComponent("meta_resolver")

	perpMeta, _, err := r.fetchPerp(ctx)
	if err != nil {
		return err
	}

	var spotUnion []models.SpotMetaAndAssetCtxs
	if err := r.info.Info(ctx, infoRequest{Type: "spotMetaAndAssetCtxs"}, &spotUnion); err != nil {
		return fmt.Errorf("failed to fetch spot metadata: %w", err)
	}
	logger.IncrementInfoRequest()
	var spotMeta *models.SpotMeta
	for _, elem := range spotUnion {
		if elem.Meta != nil {
			spotMeta = elem.Meta
		}
	}
	if spotMeta == nil {
		return fmt.Errorf("spot metadata feed returned no universe")
	}

	coinIndex := BuildCoinIndex(perpMeta)
	coinIndex = AddSpotPairs(spotMeta, coinIndex)

	szDecimals := make(map[string]int, len(perpMeta.Universe))
	for _, asset := range perpMeta.Universe {
		szDecimals[asset.Name] = asset.SzDecimals
	}
	tokensByIndex := make(map[int]models.TokenInfo, len(spotMeta.Tokens))
	for _, token := range spotMeta.Tokens {
		tokensByIndex[token.Index] = token
	}
	for _, pair := range spotMeta.Universe {
		base, ok := tokensByIndex[pair.Tokens[0]]
		if !ok {
			continue
		}
		if quote, ok := tokensByIndex[pair.Tokens[1]]; ok {
			szDecimals[base.Name+"/"+quote.Name] = base.SzDecimals
		}
		szDecimals[pair.Name] = base.SzDecimals
	}

	r.mu.Lock()
	r.coinIndex = coinIndex
	r.szDecimals = szDecimals
	r.mu.Unlock()

	log.WithFields(logger.Fields{
		"perp_assets": len(perpMeta.Universe),
		"spot_pairs":  len(spotMeta.Universe),
		"coins":       len(coinIndex),
	}).Info("refreshed asset metadata")
	return nil
}

// AssetIndex resolves a symbol to its numeric asset index. An unresolvable
// symbol is a caller error surfaced before any network effect.
func (r *Resolver) AssetIndex(coin string) (int, error) {
	r.mu.RLock()
	index, ok := r.coinIndex[coin]
	r.mu.RUnlock()
	if !ok {
		return 0, &models.UnknownAssetError{Coin: coin}
	}
	return index, nil
}

// SzDecimals reports the size precision for a symbol when known.
func (r *Resolver) SzDecimals(coin string) (int, bool) {
	r.mu.RLock()
	dec, ok := r.szDecimals[coin]
	r.mu.RUnlock()
	return dec, ok
}

// FundingRates fetches a fresh perpetual snapshot and derives one funding
// summary per asset, using venue predictions where available.
func (r *Resolver) FundingRates(ctx context.Context) ([]models.FundingRate, error) {
	perpMeta, perpCtxs, err := r.fetchPerp(ctx)
	if err != nil {
		return nil, err
	}
	predictions, err := r.fetchPredictions(ctx)
	if err != nil {
		// Predictions are an enrichment; realized rates still stand alone.
		r.log.WithComponent("meta_resolver").WithError(err).Warn("failed to fetch predicted fundings")
		predictions = map[string]string{}
	}
	return BuildFundingRates(perpMeta.Universe, perpCtxs, predictions)
}

func (r *Resolver) fetchPerp(ctx context.Context) (*models.Meta, []models.AssetContext, error) {
	var union []models.MetaAndAssetCtxs
	if err := r.info.Info(ctx, infoRequest{Type: "metaAndAssetCtxs"}, &union); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch perp metadata: %w", err)
	}
	logger.IncrementInfoRequest()

	var meta *models.Meta
	var ctxs []models.AssetContext
	for _, elem := range union {
		if elem.Meta != nil {
			meta = elem.Meta
		}
		if elem.Ctxs != nil {
			ctxs = elem.Ctxs
		}
	}
	if meta == nil {
		return nil, nil, fmt.Errorf("metadata feed returned no universe")
	}
	return meta, ctxs, nil
}

// fetchPredictions extracts this venue's predicted next rate per coin from
// the cross-venue predictedFundings response.
func (r *Resolver) fetchPredictions(ctx context.Context) (map[string]string, error) {
	var entries [][2]json.RawMessage
	if err := r.info.Info(ctx, infoRequest{Type: "predictedFundings"}, &entries); err != nil {
		return nil, fmt.Errorf("failed to fetch predicted fundings: %w", err)
	}
	logger.IncrementInfoRequest()

	predictions := make(map[string]string, len(entries))
	for _, entry := range entries {
		var coin string
		if err := json.Unmarshal(entry[0], &coin); err != nil {
			return nil, fmt.Errorf("failed to decode predicted funding coin: %w", err)
		}
		var venues [][2]json.RawMessage
		if err := json.Unmarshal(entry[1], &venues); err != nil {
			return nil, fmt.Errorf("failed to decode predicted funding venues for %s: %w", coin, err)
		}
		for _, venue := range venues {
			var name string
			if err := json.Unmarshal(venue[0], &name); err != nil || name != venueKey {
				continue
			}
			var pred struct {
				FundingRate string `json:"fundingRate"`
			}
			if err := json.Unmarshal(venue[1], &pred); err == nil && pred.FundingRate != "" {
				predictions[coin] = pred.FundingRate
			}
		}
	}
	return predictions, nil
}
