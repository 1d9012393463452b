package repositories

// Every key is namespaced by room id and/or username so concurrent
// requests contend on the store only when they target the same entity.

const roomIndexKey = "chat:rooms"

func roomKey(id string) string     { return "chat:room:" + id }
func membersKey(id string) string  { return "chat:room:" + id + ":members" }
func messagesKey(id string) string { return "chat:room:" + id + ":messages" }
func presenceKey(id string) string { return "chat:room:" + id + ":presence" }
func userKey(name string) string   { return "chat:user:" + name }
