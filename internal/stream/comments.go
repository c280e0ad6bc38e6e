package stream

import (
	"fmt"
	"strings"

	"anonstream/internal/model"
)

// Thread is one node of a reconstructed reply tree.
type Thread struct {
	Comment *model.Comment
	Replies []*Thread
}

// BuildThreads reconstructs the reply tree from the flat comment list using
// parentId. Comments whose parent is missing surface as roots rather than
// disappearing. Input order (oldest first) is preserved at every level.
func BuildThreads(comments []*model.Comment) []*Thread {
	nodes := make(map[string]*Thread, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &Thread{Comment: c}
	}

	var roots []*Thread
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID != "" {
			if parent, ok := nodes[c.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// Comment validates and persists a new comment under the current identity,
// bumping the item's comment counter. parentID may be empty for a top-level
// comment.
func (s *Service) Comment(fileID, content, parentID string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	user, err := s.Identity()
	if err != nil {
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	c := &model.Comment{
		ID:           s.idgen.New(),
		FileID:       fileID,
		ParentID:     parentID,
		Content:      content,
		AuthorID:     user.ID,
		AuthorName:   user.DisplayName,
		AuthorAvatar: user.AvatarColor,
		Timestamp:    s.clock.Now(),
	}

	if err := s.store.AddComment(c); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	s.logger.Info("comment added", "file", fileID, "comment", c.ID)
	return c, nil
}

// Comments returns the flat comment list for an item, oldest first.
func (s *Service) Comments(fileID string) ([]*model.Comment, error) {
	return s.store.ListComments(fileID)
}

// Threads returns the comment tree for an item.
func (s *Service) Threads(fileID string) ([]*Thread, error) {
	comments, err := s.store.ListComments(fileID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return BuildThreads(comments), nil
}
