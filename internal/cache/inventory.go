package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix    = "profile:%d"
	NoticeKeyPrefix     = "notice:%d"
	EventKeyPrefix      = "event:%d"
	ForumPostKeyPrefix  = "forum:post:%d"
	DashboardKeyPrefix  = "dashboard:%d"
	NoticeListVersion   = "notices:version"
	StudentCountKey     = "stats:students"
	ConversationsPrefix = "conversations:%d"
)

const (
	ProfileTTL   = 5 * time.Minute
	NoticeTTL    = 10 * time.Minute
	EventTTL     = 10 * time.Minute
	ForumPostTTL = 5 * time.Minute
	DashboardTTL = 30 * time.Second
	StatsTTL     = time.Minute
)

func ProfileKey(userID uint) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func NoticeKey(noticeID uint) string {
	return fmt.Sprintf(NoticeKeyPrefix, noticeID)
}

func EventKey(eventID uint) string {
	return fmt.Sprintf(EventKeyPrefix, eventID)
}

func ForumPostKey(postID uint) string {
	return fmt.Sprintf(ForumPostKeyPrefix, postID)
}

func DashboardKey(userID uint) string {
	return fmt.Sprintf(DashboardKeyPrefix, userID)
}

func ConversationsKey(userID uint) string {
	return fmt.Sprintf(ConversationsPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateProfile(ctx context.Context, userID uint) {
	Invalidate(ctx, ProfileKey(userID))
	Invalidate(ctx, DashboardKey(userID))
}

func InvalidateNotice(ctx context.Context, noticeID uint) {
	Invalidate(ctx, NoticeKey(noticeID))
}

func InvalidateEvent(ctx context.Context, eventID uint) {
	Invalidate(ctx, EventKey(eventID))
}

func InvalidateForumPost(ctx context.Context, postID uint) {
	Invalidate(ctx, ForumPostKey(postID))
}
