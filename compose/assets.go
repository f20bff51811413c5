package compose

// AssetMap holds named image bytes for one request. It is only read.
type AssetMap map[string][]byte

// Resolve looks key up exactly, case-sensitively.
func (m AssetMap) Resolve(key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, &Error{Kind: AssetNotFound, AssetKey: key}
	}
	return data, nil
}
