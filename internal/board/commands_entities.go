package board

import "fmt"

// UpsertVariable creates or replaces a variable.
type UpsertVariable struct {
	Base
	Variable *Variable `json:"variable"`

	previous *Variable
}

func (c *UpsertVariable) Kind() string { return KindUpsertVariable }

func (c *UpsertVariable) Execute(b *Board) error {
	if c.Variable == nil || c.Variable.ID == "" {
		return fmt.Errorf("%w: variable id is required", ErrVariableNotFound)
	}
	c.previous = nil
	if prev, ok := b.Variables[c.Variable.ID]; ok {
		c.previous = prev.Clone()
	}
	b.Variables[c.Variable.ID] = c.Variable.Clone()
	return nil
}

func (c *UpsertVariable) Undo(b *Board) error {
	if c.previous != nil {
		b.Variables[c.Variable.ID] = c.previous.Clone()
		return nil
	}
	delete(b.Variables, c.Variable.ID)
	return nil
}

// RemoveVariable deletes a variable.
type RemoveVariable struct {
	Base
	VariableID string `json:"variable_id"`

	removed *Variable
}

func (c *RemoveVariable) Kind() string { return KindRemoveVariable }

func (c *RemoveVariable) Execute(b *Board) error {
	v, ok := b.Variables[c.VariableID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, c.VariableID)
	}
	c.removed = v.Clone()
	delete(b.Variables, c.VariableID)
	return nil
}

func (c *RemoveVariable) Undo(b *Board) error {
	if c.removed == nil {
		return fmt.Errorf("%w: %s was never removed", ErrVariableNotFound, c.VariableID)
	}
	b.Variables[c.VariableID] = c.removed.Clone()
	return nil
}

// UpsertComment creates or replaces a comment.
type UpsertComment struct {
	Base
	Comment *Comment `json:"comment"`

	previous *Comment
}

func (c *UpsertComment) Kind() string { return KindUpsertComment }

func (c *UpsertComment) Execute(b *Board) error {
	if c.Comment == nil || c.Comment.ID == "" {
		return fmt.Errorf("%w: comment id is required", ErrCommentNotFound)
	}
	c.previous = nil
	if prev, ok := b.Comments[c.Comment.ID]; ok {
		c.previous = prev.Clone()
	}
	b.Comments[c.Comment.ID] = c.Comment.Clone()
	return nil
}

func (c *UpsertComment) Undo(b *Board) error {
	if c.previous != nil {
		b.Comments[c.Comment.ID] = c.previous.Clone()
		return nil
	}
	delete(b.Comments, c.Comment.ID)
	return nil
}

// RemoveComment deletes a comment.
type RemoveComment struct {
	Base
	CommentID string `json:"comment_id"`

	removed *Comment
}

func (c *RemoveComment) Kind() string { return KindRemoveComment }

func (c *RemoveComment) Execute(b *Board) error {
	cm, ok := b.Comments[c.CommentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommentNotFound, c.CommentID)
	}
	c.removed = cm.Clone()
	delete(b.Comments, c.CommentID)
	return nil
}

func (c *RemoveComment) Undo(b *Board) error {
	if c.removed == nil {
		return fmt.Errorf("%w: %s was never removed", ErrCommentNotFound, c.CommentID)
	}
	b.Comments[c.CommentID] = c.removed.Clone()
	return nil
}
