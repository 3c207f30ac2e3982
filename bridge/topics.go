package bridge

import "fmt"

// deviceHex formats a device_id as the lowercase 8-hex-digit string used
// throughout the topic tree and discovery unique ids.
func deviceHex(deviceID uint32) string {
	return fmt.Sprintf("%08x", deviceID)
}

// rootTopic builds "<root>/<leaf>".
func rootTopic(root, leaf string) string {
	return root + "/" + leaf
}

// deviceTopic builds "<root>/<device-hex>/<leaf>", or the bare device
// prefix "<root>/<device-hex>" when leaf is empty.
func deviceTopic(root string, deviceID uint32, leaf string) string {
	prefix := root + "/" + deviceHex(deviceID)
	if leaf == "" {
		return prefix
	}
	return prefix + "/" + leaf
}

// deviceSetTopic is the subscribed command topic for one entity.
func deviceSetTopic(root string, deviceID uint32, entity string) string {
	return deviceTopic(root, deviceID, entity+"/set")
}

// discoveryUniqueID is the unique_id used in discovery payloads.
func discoveryUniqueID(deviceID uint32, entity string) string {
	return fmt.Sprintf("timeguard_%s_%s", deviceHex(deviceID), entity)
}

// discoveryConfigTopic builds "<discoveryRoot>/<component>/<unique-id>/config".
func discoveryConfigTopic(discoveryRoot, component string, deviceID uint32, entity string) string {
	return fmt.Sprintf("%s/%s/%s/config", discoveryRoot, component, discoveryUniqueID(deviceID, entity))
}
