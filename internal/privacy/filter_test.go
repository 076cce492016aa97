package privacy

import (
	"testing"

	"sudooom.im.conversation/internal/model"
)

func TestFilterForUser(t *testing.T) {
	f := NewFilter()

	users := []model.User{
		{Id: 1, Username: "alice", Nickname: "Alice", Avatar: "a.png"},
		{Id: 2, Username: "bob", Nickname: "Bob", Avatar: "b.png", Privacy: HideNickname | HideAvatar},
		{Id: 3, Username: "carol", Nickname: "Carol", Avatar: "c.png", Status: model.StatusDeleted},
	}

	displays := f.FilterForUser(99, users)
	if len(displays) != 3 {
		t.Fatalf("Expected 3 displays, got %d", len(displays))
	}

	if displays[0].Nickname != "Alice" || displays[0].Avatar != "a.png" {
		t.Error("Expected open profile to pass through unchanged")
	}
	if displays[1].Nickname != "bob" {
		t.Errorf("Expected hidden nickname to fall back to username, got '%s'", displays[1].Nickname)
	}
	if displays[1].Avatar != "" {
		t.Error("Expected hidden avatar to be masked")
	}
	if displays[2].Nickname != "已注销用户" || displays[2].Avatar != "" {
		t.Error("Expected deleted user placeholder")
	}
}

func TestFilterForUser_Self(t *testing.T) {
	f := NewFilter()

	users := []model.User{
		{Id: 2, Username: "bob", Nickname: "Bob", Avatar: "b.png", Privacy: HideNickname | HideAvatar},
	}

	displays := f.FilterForUser(2, users)
	if displays[0].Nickname != "Bob" || displays[0].Avatar != "b.png" {
		t.Error("Expected privacy mask not to apply to the user themselves")
	}
}
