package versioning

import (
	"regexp"

	"github.com/hesusruiz/wikicore/blobstore"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DeleteBrokenData removes every block that may belong to the versions of
// page, without reading the overview. It is meant for pages whose overview is
// damaged. Deletion continues after failures, which are returned together.
func DeleteBrokenData(store blobstore.Store, page string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	packetKey := regexp.MustCompile(`^versioning/packet/versionNo/[0-9]+/` + regexp.QuoteMeta(page) + `$`)

	keys, err := store.DataBlockKeysStartingWith("versioning/packet/versionNo/")
	if err != nil {
		return err
	}

	var errs error
	for _, key := range keys {
		if !packetKey.MatchString(key) {
			continue
		}
		if err := store.DeleteDataBlock(key); err != nil {
			log.Warnw("deleting broken version data", "key", key, "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	if err := store.DeleteDataBlock(OverviewKey(page)); err != nil {
		log.Warnw("deleting broken version data", "key", OverviewKey(page), "error", err)
		errs = multierr.Append(errs, err)
	}
	return errs
}
