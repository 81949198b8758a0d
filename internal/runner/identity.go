package runner

import (
	"context"

	"github.com/eagraf/holochain-runner/internal/keystore"
	"github.com/eagraf/holochain-runner/internal/node/pubsub"
	"github.com/eagraf/holochain-runner/internal/node/signals"
	"github.com/rs/zerolog/log"
)

// FindOrGenerateKey returns the agent key for this run. The first ed25519 signing
// entry in enumeration order wins; other entry kinds are skipped. When none
// exists a new keypair is generated, bracketed by CreatingKeys and RegisteringDna.
// Keystore failures come back as *keystore.KeystoreError and are not retried.
func FindOrGenerateKey(ctx context.Context, ks keystore.Keystore, pub pubsub.Publisher[signals.StateSignal]) (keystore.AgentPubKey, error) {
	entries, err := ks.ListEntries(ctx)
	if err != nil {
		return keystore.AgentPubKey{}, keystore.Wrap("list entries", err)
	}

	for _, entry := range entries {
		if key, ok := entry.SigningKey(); ok {
			log.Debug().Uint64("index", entry.Index).Msgf("using existing agent key %s", key)
			return key, nil
		}
		log.Debug().Uint64("index", entry.Index).Str("kind", string(entry.Kind)).Msg("skipping keystore entry that is not a signing keypair")
	}

	signals.Emit(ctx, pub, signals.CreatingKeys)
	key, err := ks.NewSignKeypairRandom(ctx)
	if err != nil {
		return keystore.AgentPubKey{}, keystore.Wrap("new sign keypair", err)
	}
	log.Info().Msgf("generated agent key %s", key)
	signals.Emit(ctx, pub, signals.RegisteringDna)
	return key, nil
}
