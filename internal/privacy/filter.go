package privacy

import (
	"sudooom.im.conversation/internal/model"
	"sudooom.im.conversation/pkg/proto"
)

// 隐私位掩码（users.privacy 列）
const (
	HideNickname int64 = 1 << 0
	HideAvatar   int64 = 1 << 1
)

// deletedPlaceholder 已注销用户的展示名
const deletedPlaceholder = "已注销用户"

// Filter 批量用户隐私过滤器
// 对端节点不可达时，聚合层用它在本地已知（可能过期）的用户记录上
// 应用与对端一致的屏蔽规则；字段级策略是平台的外部能力，这里只做位掩码
type Filter struct{}

// NewFilter 创建隐私过滤器
func NewFilter() *Filter {
	return &Filter{}
}

// FilterForUser 以 requestingUserId 的视角过滤一批用户记录
func (f *Filter) FilterForUser(requestingUserId int64, users []model.User) []proto.UserDisplay {
	displays := make([]proto.UserDisplay, 0, len(users))
	for _, u := range users {
		d := proto.UserDisplay{
			UserId:   u.Id,
			Nickname: u.Nickname,
			Avatar:   u.Avatar,
		}

		if u.Status == model.StatusDeleted {
			d.Nickname = deletedPlaceholder
			d.Avatar = ""
			displays = append(displays, d)
			continue
		}

		if u.Id != requestingUserId {
			if u.Privacy&HideNickname != 0 {
				d.Nickname = u.Username
			}
			if u.Privacy&HideAvatar != 0 {
				d.Avatar = ""
			}
		}

		displays = append(displays, d)
	}

	return displays
}
