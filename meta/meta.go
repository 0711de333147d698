package meta

import (
	"time"

	"hyperflow/models"
)

// fundingInterval is the venue's funding interval in minutes.
const fundingInterval = 60

// nowFn is replaceable in tests.
var nowFn = time.Now

// BuildFundingRates zips the perpetual universe with its live contexts and a
// map of venue-predicted next rates. The two sequences must be index-aligned;
// a length mismatch means the upstream feed is corrupt and is reported as a
// MetadataMismatchError rather than a truncated result.
func BuildFundingRates(assets []models.AssetMeta, ctxs []models.AssetContext, predictions map[string]string) ([]models.FundingRate, error) {
	if len(assets) != len(ctxs) {
		return nil, &models.MetadataMismatchError{Assets: len(assets), Contexts: len(ctxs)}
	}

	now := nowFn().UTC()
	ts := uint64(now.UnixMilli())
	nextApply := uint64(now.Truncate(time.Hour).Add(time.Hour).UnixMilli())

	rates := make([]models.FundingRate, 0, len(assets))
	for i, asset := range assets {
		ctx := ctxs[i]
		estimate, ok := predictions[asset.Name]
		if !ok {
			estimate = ctx.Funding
		}
		rates = append(rates, models.FundingRate{
			Coin:         asset.Name,
			MarkPrice:    ctx.MarkPx,
			IndexPrice:   ctx.OraclePx,
			Rate:         ctx.Funding,
			RateEstimate: estimate,
			Interval:     fundingInterval,
			NextApplyTs:  nextApply,
			Ts:           ts,
		})
	}
	return rates, nil
}

// AddSpotPairs merges spot symbol entries into a copy of the supplied
// coin-to-index map. Each fully resolvable pair contributes two entries: the
// "TOKEN1/TOKEN2" symbol and the pair's own declared name, both at the
// spot-offset index. Pairs whose token legs are missing from the token
// registry are skipped entirely; no partial pair is ever inserted.
func AddSpotPairs(spot *models.SpotMeta, base map[string]int) map[string]int {
	merged := make(map[string]int, len(base)+2*len(spot.Universe))
	for coin, index := range base {
		merged[coin] = index
	}

	indexToName := make(map[int]string, len(spot.Tokens))
	for _, token := range spot.Tokens {
		indexToName[token.Index] = token.Name
	}

	for _, pair := range spot.Universe {
		spotIndex := models.SpotAssetOffset + pair.Index

		token1, ok := indexToName[pair.Tokens[0]]
		if !ok {
			continue
		}
		token2, ok := indexToName[pair.Tokens[1]]
		if !ok {
			continue
		}

		merged[token1+"/"+token2] = spotIndex
		merged[pair.Name] = spotIndex
	}

	return merged
}

// BuildCoinIndex maps each perpetual symbol to its position in the universe.
func BuildCoinIndex(perp *models.Meta) map[string]int {
	index := make(map[string]int, len(perp.Universe))
	for i, asset := range perp.Universe {
		index[asset.Name] = i
	}
	return index
}
