package cmd

import (
	"github.com/BitPonyLLC/canvaspipe/pkg/catalog"
	"github.com/BitPonyLLC/canvaspipe/pkg/events"
	"github.com/BitPonyLLC/canvaspipe/pkg/pipeline"
	"github.com/BitPonyLLC/canvaspipe/pkg/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// backends are the stateful collaborators of the pipeline. Commands open them
// once and close them on the way out.
type backends struct {
	store   *storage.FileStore
	catalog *catalog.Catalog
}

func openBackends() (*backends, error) {
	store, err := storage.NewFileStore(viper.GetString("storage.dir"), viper.GetString("storage.base-url"))
	if err != nil {
		return nil, fail(10, "unable to open storage: %w", err)
	}

	cat, err := openCatalog()
	if err != nil {
		return nil, err
	}

	log.Debug().Str("storage", store.Root).Str("catalog", viper.GetString("catalog.path")).Msg("backends ready")
	return &backends{store: store, catalog: cat}, nil
}

func openCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Open(viper.GetString("catalog.path"))
	if err != nil {
		return nil, fail(10, "unable to open catalog: %w", err)
	}
	return cat, nil
}

func (b *backends) processor(manager *events.Manager) *pipeline.Processor {
	p := pipeline.NewProcessor(b.store, b.catalog, variantOptions(), manager, &log.Logger)
	p.KeyPrefix = viper.GetString("storage.prefix")
	return p
}

func (b *backends) Close() {
	if b.catalog != nil {
		err := b.catalog.Close()
		if err != nil {
			log.Err(err).Msg("unable to close catalog")
		}
	}
}
