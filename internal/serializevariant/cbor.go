package serializevariant

import (
	"fmt"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"
)

var (
	modesOnce sync.Once
	encMode   cbor.EncMode
	decMode   cbor.DecMode
	modesErr  error
)

func modes() (cbor.EncMode, cbor.DecMode, error) {
	modesOnce.Do(func() {
		encMode, modesErr = cbor.CanonicalEncOptions().EncMode()
		if modesErr != nil {
			return
		}
		decMode, modesErr = cbor.DecOptions{}.DecMode()
	})
	return encMode, decMode, modesErr
}

// MarshalCBOR 以规范（确定性）CBOR 编码动态树
func MarshalCBOR(root map[string]any) ([]byte, error) {
	em, _, err := modes()
	if err != nil {
		return nil, fmt.Errorf("serializevariant.MarshalCBOR: %w", err)
	}
	data, err := em.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("serializevariant.MarshalCBOR: %w", err)
	}
	return data, nil
}

// UnmarshalCBOR 解码 CBOR 为动态树，结果可交给 Parser
func UnmarshalCBOR(data []byte) (any, error) {
	_, dm, err := modes()
	if err != nil {
		return nil, fmt.Errorf("serializevariant.UnmarshalCBOR: %w", err)
	}
	var root any
	if err := dm.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("serializevariant.UnmarshalCBOR: %w", err)
	}
	return root, nil
}
