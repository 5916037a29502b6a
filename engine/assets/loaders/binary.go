package loaders

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

var (
	ErrEmptyShader      = errors.New("shader binary is empty")
	ErrMisalignedShader = errors.New("shader binary size is not a multiple of 4")
	ErrNotSPIRV         = errors.New("shader binary does not start with the SPIR-V magic number")
)

// Resource is a loaded binary asset.
type Resource struct {
	Name     string
	FullPath string
	// Size of the file on disk in bytes.
	DataSize uint64
	Data     []uint32
}

type BinaryLoader struct{}

// Load reads a compiled SPIR-V module. The resource is named after the file
// without its extension, so shaders/shader.vert.spv becomes "shader.vert".
func (bl *BinaryLoader) Load(path string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	code, err := BytesToBytecode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Resource{
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     code,
	}, nil
}

func (bl *BinaryLoader) Unload(res *Resource) error {
	res.Data = nil
	res.DataSize = 0
	return nil
}

// BytesToBytecode reinterprets little endian bytes as SPIR-V words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 {
		return nil, ErrEmptyShader
	}
	if len(b)%4 != 0 {
		return nil, ErrMisalignedShader
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	if byteCode[0] != SPIRVMagic {
		return nil, ErrNotSPIRV
	}
	return byteCode, nil
}
