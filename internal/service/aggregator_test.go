package service

import (
	"context"
	"testing"
	"time"

	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/internal/peer"
	"sudooom.im.conversation/pkg/errors"
	"sudooom.im.conversation/pkg/proto"
)

// ============== 共享测试替身 ==============

type fakeSource struct {
	dialogs  map[int64][]model.ConversationPreview
	chats    map[int64][]model.ConversationPreview
	channels map[int64][]model.ConversationPreview
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		dialogs:  make(map[int64][]model.ConversationPreview),
		chats:    make(map[int64][]model.ConversationPreview),
		channels: make(map[int64][]model.ConversationPreview),
	}
}

func clonePreviews(previews []model.ConversationPreview) []model.ConversationPreview {
	out := make([]model.ConversationPreview, len(previews))
	copy(out, previews)
	return out
}

func (f *fakeSource) GetUserDialogsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error) {
	return clonePreviews(f.dialogs[userId]), nil
}

func (f *fakeSource) GetUserChatsPreview(ctx context.Context, userId int64, since int64) ([]model.ConversationPreview, error) {
	return clonePreviews(f.chats[userId]), nil
}

func (f *fakeSource) GetUserChannelsPreview(ctx context.Context, userId int64) ([]model.ConversationPreview, error) {
	return clonePreviews(f.channels[userId]), nil
}

type fakeUsers struct {
	users     map[int64]model.User
	requested []int64
}

func (f *fakeUsers) FindByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	f.requested = append(f.requested, ids...)
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakePrivacy struct{}

func (fakePrivacy) FilterForUser(requestingUserId int64, users []model.User) []proto.UserDisplay {
	out := make([]proto.UserDisplay, 0, len(users))
	for _, u := range users {
		out = append(out, proto.UserDisplay{UserId: u.Id, Nickname: u.Nickname, Avatar: u.Avatar})
	}
	return out
}

type fakePeers struct {
	connErr  map[string]error
	displays map[string][]proto.UserDisplay
	descErr  map[string]error
}

func (f *fakePeers) GetConnection(ctx context.Context, nodeId string) (*peer.Conn, error) {
	if err, ok := f.connErr[nodeId]; ok {
		return nil, err
	}
	return &peer.Conn{NodeId: nodeId}, nil
}

func (f *fakePeers) DescribeUsers(ctx context.Context, conn *peer.Conn, userIds []int64, requestingUserId int64) ([]proto.UserDisplay, error) {
	if err, ok := f.descErr[conn.NodeId]; ok {
		return nil, err
	}
	return f.displays[conn.NodeId], nil
}

func newTestAggregator(source *fakeSource, users *fakeUsers, peers *fakePeers) *AggregatorService {
	return NewAggregatorService(source, users, peers, fakePrivacy{}, "node-local", 2*time.Second, 4)
}

// ============== 测试 ==============

func TestAggregatorOrdering(t *testing.T) {
	source := newFakeSource()
	source.dialogs[1] = []model.ConversationPreview{
		{ConversationId: 10, Kind: model.KindDialog, LastMessageTime: 300},
	}
	source.chats[1] = []model.ConversationPreview{
		{ConversationId: 20, Kind: model.KindChat, LastMessageTime: 500},
		{ConversationId: 21, Kind: model.KindChat, LastMessageTime: 100},
	}
	source.channels[1] = []model.ConversationPreview{
		{ConversationId: 30, Kind: model.KindChannel, LastMessageTime: 400},
	}

	agg := newTestAggregator(source, &fakeUsers{users: map[int64]model.User{}}, &fakePeers{})

	got, err := agg.GetUserConversationsPage(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []int64{20, 30, 10, 21}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d previews, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ConversationId != id {
			t.Errorf("position %d: expected conversation %d, got %d", i, id, got[i].ConversationId)
		}
	}
}

func TestAggregatorAnchorTrim(t *testing.T) {
	source := newFakeSource()
	source.chats[1] = []model.ConversationPreview{
		{ConversationId: 20, Kind: model.KindChat, LastMessageTime: 500},
		{ConversationId: 21, Kind: model.KindChat, LastMessageTime: 300},
		{ConversationId: 22, Kind: model.KindChat, LastMessageTime: 100},
	}

	agg := newTestAggregator(source, &fakeUsers{users: map[int64]model.User{}}, &fakePeers{})

	anchor := &model.Anchor{ConversationId: 21, Kind: model.KindChat}
	got, err := agg.GetUserConversationsPage(context.Background(), 1, anchor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 1 || got[0].ConversationId != 22 {
		t.Fatalf("expected only conversation 22 after anchor, got %+v", got)
	}
}

func TestAggregatorAnchorNotFound(t *testing.T) {
	source := newFakeSource()
	source.chats[1] = []model.ConversationPreview{
		{ConversationId: 20, Kind: model.KindChat, LastMessageTime: 500},
		{ConversationId: 21, Kind: model.KindChat, LastMessageTime: 300},
	}

	agg := newTestAggregator(source, &fakeUsers{users: map[int64]model.User{}}, &fakePeers{})

	// 锚点已不在列表中（会话被删除或游标过期）：返回完整列表
	anchor := &model.Anchor{ConversationId: 999, Kind: model.KindChat}
	got, err := agg.GetUserConversationsPage(context.Background(), 1, anchor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected full list for stale anchor, got %d previews", len(got))
	}
}

func TestAggregatorPeerFailureIsolation(t *testing.T) {
	source := newFakeSource()
	source.dialogs[1] = []model.ConversationPreview{
		{ConversationId: 10, Kind: model.KindDialog, LastMessageTime: 300, CounterpartUserId: 7},
	}
	source.chats[1] = []model.ConversationPreview{
		{ConversationId: 20, Kind: model.KindChat, LastMessageTime: 500, LastMessageSenderId: 8},
	}

	users := &fakeUsers{users: map[int64]model.User{
		7: {Id: 7, Nickname: "stale-seven", Avatar: "stale-avatar", NodeId: "node-down"},
		8: {Id: 8, Nickname: "stale-eight", NodeId: "node-up"},
	}}
	peers := &fakePeers{
		connErr: map[string]error{"node-down": errors.ErrNodeUnknown},
		displays: map[string][]proto.UserDisplay{
			"node-up": {{UserId: 8, Nickname: "fresh-eight", Avatar: "fresh-avatar"}},
		},
	}

	agg := newTestAggregator(source, users, peers)

	got, err := agg.GetUserConversationsPage(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both conversations despite peer failure, got %d", len(got))
	}

	var dialog, chat *model.ConversationPreview
	for i := range got {
		switch got[i].ConversationId {
		case 10:
			dialog = &got[i]
		case 20:
			chat = &got[i]
		}
	}
	if dialog == nil || chat == nil {
		t.Fatalf("missing conversations in result: %+v", got)
	}

	// 不可达节点的单聊降级为本地（可能过期的）记录
	if dialog.Title != "stale-seven" || dialog.Photo != "stale-avatar" {
		t.Errorf("expected local fallback display for dialog, got title=%q photo=%q", dialog.Title, dialog.Photo)
	}
	// 可达节点的群聊拿到新鲜数据，不受兄弟组失败影响
	if chat.LastMessageSenderName != "fresh-eight" {
		t.Errorf("expected fresh sender name from reachable peer, got %q", chat.LastMessageSenderName)
	}
}

func TestAggregatorChannelSendersAnonymized(t *testing.T) {
	source := newFakeSource()
	source.channels[1] = []model.ConversationPreview{
		{ConversationId: 30, Kind: model.KindChannel, LastMessageTime: 400, LastMessageSenderId: 9, Title: "news"},
	}

	users := &fakeUsers{users: map[int64]model.User{
		9: {Id: 9, Nickname: "should-not-appear"},
	}}

	agg := newTestAggregator(source, users, &fakePeers{})

	got, err := agg.GetUserConversationsPage(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one channel preview, got %d", len(got))
	}

	// 频道发送者不参与身份解析
	for _, id := range users.requested {
		if id == 9 {
			t.Error("channel sender id was resolved, expected anonymized")
		}
	}
	if got[0].LastMessageSenderName != "" {
		t.Errorf("expected empty sender name on channel, got %q", got[0].LastMessageSenderName)
	}
	if got[0].Title != "news" {
		t.Errorf("channel title changed: %q", got[0].Title)
	}
}

func TestAggregatorDialogSenderName(t *testing.T) {
	source := newFakeSource()
	source.dialogs[1] = []model.ConversationPreview{
		// 最后一条消息由对方发出
		{ConversationId: 10, Kind: model.KindDialog, LastMessageTime: 300, CounterpartUserId: 7, LastMessageSenderId: 7},
		// 最后一条消息由自己发出
		{ConversationId: 11, Kind: model.KindDialog, LastMessageTime: 200, CounterpartUserId: 8, LastMessageSenderId: 1},
	}

	users := &fakeUsers{users: map[int64]model.User{
		7: {Id: 7, Nickname: "seven"},
		8: {Id: 8, Nickname: "eight"},
	}}

	agg := newTestAggregator(source, users, &fakePeers{})

	got, err := agg.GetUserConversationsPage(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got[0].Title != "seven" || got[0].LastMessageSenderName != "seven" {
		t.Errorf("counterpart-sent dialog: title=%q senderName=%q", got[0].Title, got[0].LastMessageSenderName)
	}
	if got[1].Title != "eight" || got[1].LastMessageSenderName != "" {
		t.Errorf("self-sent dialog: title=%q senderName=%q", got[1].Title, got[1].LastMessageSenderName)
	}
}
