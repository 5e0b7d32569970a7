package assets

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/fennelvane/ember/engine/core"
)

const spirvMagic uint32 = 0x07230203

// LoadSPIRV reads a compiled shader blob and returns it as 32-bit words
// ready for pipeline creation. The file must be word-aligned and start
// with the SPIR-V magic number.
func LoadSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		core.LogError("failed to read shader %s: %s", path, err)
		return nil, fmt.Errorf("failed to read shader %s: %w", path, err)
	}
	return spirvWords(path, data)
}

func spirvWords(path string, data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader %s is not word-aligned (%d bytes)", path, len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("shader %s has no SPIR-V magic number", path)
	}
	return words, nil
}
