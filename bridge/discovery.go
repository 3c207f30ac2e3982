package bridge

import "encoding/json"

// discoveryAvailability describes one of the two availability topics every
// discovery payload declares (gateway LWT and the device's own LWT); both
// must report "online" for the entity to be considered available.
type discoveryAvailability struct {
	Topic              string `json:"topic"`
	PayloadAvailable   string `json:"payload_available"`
	PayloadUnavailable string `json:"payload_not_available"`
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Name         string   `json:"name"`
}

// discoveryPayload is marshalled to JSON and published retained to
// "<discovery-root>/<component>/<unique-id>/config".
type discoveryPayload struct {
	BaseTopic     string                  `json:"~"`
	UniqueID      string                  `json:"unique_id"`
	Availability  []discoveryAvailability `json:"availability"`
	AvailMode     string                  `json:"availability_mode"`
	Name          string                  `json:"name"`
	StateTopic    string                  `json:"state_topic"`
	CommandTopic  string                  `json:"command_topic,omitempty"`
	Options       []string                `json:"options,omitempty"`
	UnitOfMeasure string                  `json:"unit_of_measurement,omitempty"`
	DeviceClass   string                  `json:"device_class,omitempty"`
	Device        discoveryDevice         `json:"device"`
}

// entityDescriptor names one bus entity and how it should be discovered.
type entityDescriptor struct {
	component   string // sensor | binary_sensor | switch | select
	entity      string // topic leaf and unique_id suffix
	name        string // friendly name
	unit        string
	deviceClass string
	command     bool // whether this entity also subscribes a /set topic
}

// stateEntities enumerates every read-only and read/write state
// publication the Bridge exposes, used to build discovery payloads.
var stateEntities = []entityDescriptor{
	{component: "sensor", entity: "uptime", name: "Uptime", unit: "s"},
	{component: "binary_sensor", entity: "switch_state", name: "Switch state", deviceClass: "power"},
	{component: "binary_sensor", entity: "load_detected", name: "Load detected"},
	{component: "binary_sensor", entity: "load_was_detected_previously", name: "Load was detected previously"},
	{component: "binary_sensor", entity: "advance_mode", name: "Advance mode"},
	{component: "sensor", entity: "work_mode", name: "Work mode"},
	{component: "sensor", entity: "boost", name: "Boost"},
	{component: "sensor", entity: "boost_duration_left", name: "Boost duration left"},
	{component: "sensor", entity: "code_version", name: "Firmware version"},
	{component: "sensor", entity: "active_schedule_id", name: "Active schedule id"},
}

// commandEntities enumerates the select/switch entities with a
// command_topic, published separately since several need dynamic options.
var commandEntities = []entityDescriptor{
	{component: "select", entity: "boost", name: "Boost", command: true},
	{component: "select", entity: "advance_mode", name: "Advance mode", command: true},
	{component: "select", entity: "work_mode", name: "Work mode", command: true},
}

func (b *Bridge) deviceMetadata(deviceID uint32) discoveryDevice {
	return discoveryDevice{
		Identifiers:  []string{"tg:" + deviceHex(deviceID)},
		Manufacturer: "Timeguard",
		Name:         b.displayName(deviceID),
	}
}

func (b *Bridge) availability(deviceID uint32) []discoveryAvailability {
	return []discoveryAvailability{
		{
			Topic:              deviceTopic(b.cfg.Root, deviceID, "lwt"),
			PayloadAvailable:   "online",
			PayloadUnavailable: "offline",
		},
		{
			Topic:              rootTopic(b.cfg.Root, "lwt"),
			PayloadAvailable:   "online",
			PayloadUnavailable: "offline",
		},
	}
}

// publishDiscovery publishes one discovery config payload for entity.
func (b *Bridge) publishDiscovery(deviceID uint32, d entityDescriptor, options []string) {
	if b.cfg.DiscoveryRoot == "" {
		return
	}

	payload := discoveryPayload{
		BaseTopic:     deviceTopic(b.cfg.Root, deviceID, ""),
		UniqueID:      discoveryUniqueID(deviceID, d.entity),
		Availability:  b.availability(deviceID),
		AvailMode:     "all",
		Name:          d.name,
		StateTopic:    "~/" + d.entity,
		UnitOfMeasure: d.unit,
		DeviceClass:   d.deviceClass,
		Options:       options,
		Device:        b.deviceMetadata(deviceID),
	}
	if d.command {
		payload.CommandTopic = "~/" + d.entity + "/set"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("marshal discovery payload failed", "error", err)
		return
	}

	topic := discoveryConfigTopic(b.cfg.DiscoveryRoot, d.component, deviceID, d.entity)
	if err := b.client.Publish(topic, data, true); err != nil {
		b.log.Warn("publish discovery payload failed", "topic", topic, "error", err)
	}
}

// commandEntityOptions gives the static select options for each of
// commandEntities, in the same order.
var commandEntityOptions = map[string][]string{
	"boost":        {"Off", "1 hour", "2 hours"},
	"advance_mode": {"OFF", "ON"},
	"work_mode":    {"Auto", "Always off", "Always on", "Holiday"},
}

// publishAllDiscovery publishes the static entity set plus the
// boost/advance_mode/work_mode selects for a newly-seen device.
func (b *Bridge) publishAllDiscovery(deviceID uint32) {
	for _, d := range stateEntities {
		b.publishDiscovery(deviceID, d, nil)
	}
	for _, d := range commandEntities {
		b.publishDiscovery(deviceID, d, commandEntityOptions[d.entity])
	}
}

// publishActiveScheduleDiscovery publishes (or republishes) the
// active_schedule selector once its option list is known, per scenario
// S5: the options are "#<1-based-id>: <name>" for each non-empty name.
func (b *Bridge) publishActiveScheduleDiscovery(deviceID uint32, options []string) {
	b.publishDiscovery(deviceID, entityDescriptor{component: "select", entity: "active_schedule", name: "Active schedule", command: true}, options)
}
