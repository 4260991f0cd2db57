package keybackend

// KeysConfig holds configuration for loading access keys.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline" yaml:"inline,omitempty"` // Inline key pairs from config
	File   string    `mapstructure:"file" yaml:"file,omitempty"`     // Path to a JSON or YAML file of key pairs
}

// NewSecretStore builds a store from inline pairs and the optional keys
// file. File keys override inline keys with the same access key.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	keys := make(map[string]string)
	addPairs(keys, cfg.Inline)

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	return NewMapSecretStore(keys), nil
}
