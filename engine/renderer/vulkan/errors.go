package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/core"
)

// ErrorKind tags a failed device call with the recovery the render loop
// should apply to it.
type ErrorKind int

const (
	KindCreationFailed ErrorKind = iota
	KindSurfaceLost
	KindDeviceLost
	KindOutOfDate
	KindSuboptimal
	KindNotReady
)

var (
	ErrCreationFailed = errors.New("creation failed")
	ErrSurfaceLost    = errors.New("surface lost")
	ErrDeviceLost     = errors.New("device lost")
	ErrOutOfDate      = errors.New("swapchain out of date")
	ErrSuboptimal     = errors.New("swapchain suboptimal")
	ErrNotReady       = errors.New("not ready")
)

var kindSentinels = map[ErrorKind]error{
	KindCreationFailed: ErrCreationFailed,
	KindSurfaceLost:    ErrSurfaceLost,
	KindDeviceLost:     ErrDeviceLost,
	KindOutOfDate:      ErrOutOfDate,
	KindSuboptimal:     ErrSuboptimal,
	KindNotReady:       ErrNotReady,
}

func (k ErrorKind) String() string {
	switch k {
	case KindCreationFailed:
		return "CreationFailed"
	case KindSurfaceLost:
		return "SurfaceLost"
	case KindDeviceLost:
		return "DeviceLost"
	case KindOutOfDate:
		return "OutOfDate"
	case KindSuboptimal:
		return "Suboptimal"
	case KindNotReady:
		return "NotReady"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the result of a device call that did not return VK_SUCCESS.
// errors.Is matches it against the sentinel of its Kind.
type Error struct {
	Op     string
	Kind   ErrorKind
	Result vk.Result
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, VulkanResultString(e.Result), int32(e.Result))
}

func (e *Error) Unwrap() error {
	return kindSentinels[e.Kind]
}

// Classify maps a non-success result onto the error taxonomy.
func Classify(result vk.Result) ErrorKind {
	switch result {
	case vk.ErrorOutOfDate:
		return KindOutOfDate
	case vk.Suboptimal:
		return KindSuboptimal
	case vk.ErrorSurfaceLost, vk.ErrorNativeWindowInUse:
		return KindSurfaceLost
	case vk.ErrorDeviceLost:
		return KindDeviceLost
	case vk.NotReady, vk.Timeout:
		return KindNotReady
	}
	return KindCreationFailed
}

func newError(op string, result vk.Result) *Error {
	return &Error{Op: op, Kind: Classify(result), Result: result}
}

// checkResult returns nil on VK_SUCCESS and a logged *Error otherwise.
func checkResult(op string, result vk.Result) error {
	if result == vk.Success {
		return nil
	}
	err := newError(op, result)
	core.LogError(err.Error())
	return err
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var vkErr *Error
	if errors.As(err, &vkErr) {
		return vkErr.Kind == kind
	}
	return false
}
