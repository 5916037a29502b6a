package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b\x00"}))
}

func TestFindFirstZeroInByteArray(t *testing.T) {
	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'g', 'p', 'u', 0, 'x'}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'o', 'k'}))
}

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success))
	assert.Equal(t, "VK_SUBOPTIMAL_KHR", VulkanResultString(vk.Suboptimal))
	assert.Equal(t, "VK_RESULT_-12345", VulkanResultString(vk.Result(-12345)))
}
