package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, convID uint64, msgID primitive.ObjectID) (*Message, error)
	GetRecent(ctx context.Context, convID uint64, limit int) ([]*Message, error)
	GetHistoryBefore(ctx context.Context, convID uint64, beforeID primitive.ObjectID, limit int) ([]*Message, error)
	GetLatest(ctx context.Context, convID uint64) (*Message, error)

	ApplyEdit(ctx context.Context, convID uint64, msgID primitive.ObjectID, newContent string, prev EditRecord) error
	MarkDeletedForEveryone(ctx context.Context, convID uint64, msgID primitive.ObjectID, placeholder string) error
	HideForUser(ctx context.Context, convID uint64, msgID primitive.ObjectID, userID uint64) error
	ToggleReaction(ctx context.Context, convID uint64, msgID primitive.ObjectID, userID uint64, emoji string) (added bool, err error)
	AddReceipts(ctx context.Context, convID uint64, msgIDs []primitive.ObjectID, userID uint64) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// EnsureMessageIndexes 建立会话内按时间检索所需的复合索引
func EnsureMessageIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("message").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		},
	})
	return err
}

// SaveMessage 将消息存入 MongoDB，回填生成的 ObjectID
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	res, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// GetMessage 精确查询单条消息
func (s *messageRepoImpl) GetMessage(ctx context.Context, convID uint64, msgID primitive.ObjectID) (*Message, error) {
	var msg Message
	filter := bson.M{"_id": msgID, "conversation_id": convID}
	if err := s.col.FindOne(ctx, filter).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetRecent 拉取会话最近 limit 条消息，按 created_at 升序返回
func (s *messageRepoImpl) GetRecent(ctx context.Context, convID uint64, limit int) ([]*Message, error) {
	return s.findWindow(ctx, bson.M{"conversation_id": convID}, limit)
}

// GetHistoryBefore 游标式历史查询，beforeID 为当前页面最旧一条消息的 ID
// 零值 ObjectID 表示第一页
func (s *messageRepoImpl) GetHistoryBefore(ctx context.Context, convID uint64, beforeID primitive.ObjectID, limit int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}
	if !beforeID.IsZero() {
		filter["_id"] = bson.M{"$lt": beforeID}
	}
	return s.findWindow(ctx, filter, limit)
}

func (s *messageRepoImpl) findWindow(ctx context.Context, filter bson.M, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 20
	}

	findOptions := options.Find().
		SetSort(bson.D{
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// 反转消息列表，保证消息从旧到新排列
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// GetLatest 获取会话最新一条消息，供校准任务比对冗余预览
func (s *messageRepoImpl) GetLatest(ctx context.Context, convID uint64) (*Message, error) {
	var msg Message
	opts := options.FindOne().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	err := s.col.FindOne(ctx, bson.M{"conversation_id": convID}, opts).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ApplyEdit 原内容入历史，落新内容
func (s *messageRepoImpl) ApplyEdit(ctx context.Context, convID uint64, msgID primitive.ObjectID, newContent string, prev EditRecord) error {
	filter := bson.M{"_id": msgID, "conversation_id": convID}
	update := bson.M{
		"$set": bson.M{
			"content":    newContent,
			"edited":     true,
			"updated_at": time.Now(),
		},
		"$push": bson.M{"edit_history": prev},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkDeletedForEveryone 全员撤回：打标记、内容替换为占位文案、清空附件
func (s *messageRepoImpl) MarkDeletedForEveryone(ctx context.Context, convID uint64, msgID primitive.ObjectID, placeholder string) error {
	filter := bson.M{"_id": msgID, "conversation_id": convID}
	update := bson.M{
		"$set": bson.M{
			"deleted":              true,
			"deleted_for_everyone": true,
			"content":              placeholder,
			"updated_at":           time.Now(),
		},
		"$unset": bson.M{"attachments": ""},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// HideForUser 仅对指定用户隐藏，不限时、不校验发送者
func (s *messageRepoImpl) HideForUser(ctx context.Context, convID uint64, msgID primitive.ObjectID, userID uint64) error {
	filter := bson.M{"_id": msgID, "conversation_id": convID}
	update := bson.M{
		"$set": bson.M{
			"deleted_for." + formatUID(userID): true,
			"updated_at":                       time.Now(),
		},
	}
	res, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ToggleReaction 按用户翻转表情回应
// 两步均为单文档原子更新：先尝试带成员条件的 $pull，未命中再 $addToSet，
// 不同 emoji / 不同用户的并发操作互不覆盖
// 同一用户对同一 emoji 的并发重复取消不幂等：后到的 $pull 落空后会走
// $addToSet 重新加上，调用端按翻转语义对待每次请求
// emoji 会拼进字段路径，上层须拦截含 '.' 或 '$' 前缀的键
func (s *messageRepoImpl) ToggleReaction(ctx context.Context, convID uint64, msgID primitive.ObjectID, userID uint64, emoji string) (bool, error) {
	field := "reactions." + emoji
	now := time.Now()

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": msgID, "conversation_id": convID, field: userID},
		bson.M{
			"$pull": bson.M{field: userID},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		// 移除后若集合为空则清掉整个 emoji 键
		_, err = s.col.UpdateOne(ctx,
			bson.M{"_id": msgID, field: bson.M{"$size": 0}},
			bson.M{"$unset": bson.M{field: ""}})
		return false, err
	}

	res, err = s.col.UpdateOne(ctx,
		bson.M{"_id": msgID, "conversation_id": convID},
		bson.M{
			"$addToSet": bson.M{field: userID},
			"$set":      bson.M{"updated_at": now},
		})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	return true, nil
}

// AddReceipts 已读/送达回执做集合并集，只增不减
func (s *messageRepoImpl) AddReceipts(ctx context.Context, convID uint64, msgIDs []primitive.ObjectID, userID uint64) error {
	if len(msgIDs) == 0 {
		return nil
	}
	filter := bson.M{
		"_id":             bson.M{"$in": msgIDs},
		"conversation_id": convID,
	}
	update := bson.M{
		"$addToSet": bson.M{
			"read_by":      userID,
			"delivered_to": userID,
		},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := s.col.UpdateMany(ctx, filter, update)
	return err
}
