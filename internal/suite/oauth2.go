package suite

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/rerr"
)

// applyOAuth2 runs every Config block's client-credentials token fetch and
// feeds the resulting access token into the store's included layer under
// SaveAs (default "oauth_token"), per SPEC_FULL.md's oauth2: enrichment.
// Later Config blocks' fetches overwrite earlier ones on key collision, same
// as every other included-layer merge in this file.
func applyOAuth2(ctx context.Context, blocks []*block.Block, store oauth2Store) error {
	for _, b := range blocks {
		if b.Kind != block.KindConfig || b.Config.OAuth2 == nil {
			continue
		}
		if err := fetchAndStore(ctx, b.Config.OAuth2, store); err != nil {
			return err
		}
	}
	return nil
}

// oauth2Store is the minimal surface applyOAuth2 needs from vars.Store,
// named separately so this file doesn't import vars merely to hold a token.
type oauth2Store interface {
	MergeIncluded(map[string]string)
}

func fetchAndStore(ctx context.Context, cfg *block.OAuth2Config, store oauth2Store) error {
	ccCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	token, err := ccCfg.Token(ctx)
	if err != nil {
		return rerr.Wrap(rerr.KindNetwork, "oauth2 client-credentials fetch failed", err)
	}

	saveAs := cfg.SaveAs
	if saveAs == "" {
		saveAs = "oauth_token"
	}
	store.MergeIncluded(map[string]string{saveAs: token.AccessToken})
	return nil
}
