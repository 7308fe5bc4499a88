package gateway

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonanatree/paygate/gateway/models"
)

//go:embed seed_cards.yaml
var defaultSeed []byte

type seedFile struct {
	Cards []models.NewCard `yaml:"cards"`
}

// DefaultSeedCards returns the demo cards bundled with the gateway.
func DefaultSeedCards() ([]models.NewCard, error) {
	return decodeSeed(bytes.NewReader(defaultSeed))
}

// LoadSeedFile reads cards from a YAML file with a top-level "cards" list.
func LoadSeedFile(path string) ([]models.NewCard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return decodeSeed(f)
}

func decodeSeed(r io.Reader) ([]models.NewCard, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("decoding seed cards: %w", err)
	}
	return sf.Cards, nil
}
