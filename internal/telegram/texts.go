package telegram

// UI texts in English
const (
	startText = "👋 I deliver your daily reset reminders.\n\n" +
		"Send /link <device key> to receive them here. The device key is shown in the app settings.\n" +
		"Send /unlink <device key> to stop."
	askDeviceKeyText  = "Send the device key from the app settings:"
	invalidKeyText    = "That does not look like a device key. Use letters, digits, - or _."
	linkedText        = "Linked ✅ Daily reset reminders for this device will arrive here."
	unlinkedText      = "Unlinked ⏸ This chat will no longer receive reminders for that device."
	notLinkedText     = "This chat is not linked to that device."
	alreadyLinkedText = "That device already sends reminders elsewhere. Unlink it there first."
)
