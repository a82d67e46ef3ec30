package persona

import "github.com/eldtechnologies/chatsim/internal/models"

// DefaultUserAvatar is the avatar stamped on user messages.
const DefaultUserAvatar = "https://i.pravatar.cc/48?img=3"

// Builtin returns the catalog shipped with the server.
func Builtin() *Catalog {
	c, err := NewCatalog([]models.Persona{
		{
			ID:          "helper",
			DisplayName: "Helper",
			AvatarRef:   "https://i.pravatar.cc/48?img=32",
			Description: "Friendly helper bot",
			ReplyPool: []string{
				"Hi! How can I help you today?",
				"Sure, try breaking the task into smaller steps.",
				"You can also search online docs for quick examples.",
				"I suggest starting with a simple prototype first.",
				"If you need, I can give a short checklist.",
			},
		},
		{
			ID:          "funny",
			DisplayName: "Funny",
			AvatarRef:   "https://i.pravatar.cc/48?img=56",
			Description: "Makes jokes",
			ReplyPool: []string{
				"Why did the developer go broke? Because he used up all his cache.",
				"I told a UDP joke, you might not get it.",
				"I tried to catch some fog earlier. Mist!",
				"I would tell you a joke about UDP, but I'm not sure you'd get the response.",
			},
		},
		{
			ID:          "info",
			DisplayName: "Info",
			AvatarRef:   "https://i.pravatar.cc/48?img=14",
			Description: "Gives facts",
			ReplyPool: []string{
				"JS was created in 10 days.",
				"Pro tip: comment your code for future you.",
				"Fun fact: the first computer bug was a real moth.",
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
