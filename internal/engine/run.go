package engine

import (
	"context"

	"duotask/internal/realtime"
)

// Run drains the realtime subscriptions until ctx is cancelled: change
// events merge into the mirror, nudges and due alerts hit the notifier,
// and partner milestones feed the celebration channel. Transport is kept
// out of the merge rule so the rule stays independently testable.
func (e *Engine) Run(ctx context.Context) error {
	if e.sub == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	changes, err := e.sub.Changes(ctx)
	if err != nil {
		return err
	}
	nudges, err := e.sub.Nudges(ctx, e.user.ID)
	if err != nil {
		return err
	}
	milestones, err := e.sub.Milestones(ctx, e.user.ID)
	if err != nil {
		return err
	}
	dueAlerts, err := e.sub.TaskDue(ctx, e.user.ID)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.handleChange(event)
		case nudge, ok := <-nudges:
			if !ok {
				nudges = nil
				continue
			}
			if e.notifier != nil {
				e.notifier.Show("Nudge", nudge.NudgerName+" is asking about \""+nudge.Title+"\"", "nudge-"+nudge.Title)
			}
		case milestone, ok := <-milestones:
			if !ok {
				milestones = nil
				continue
			}
			e.celebrate(milestone)
		case due, ok := <-dueAlerts:
			if !ok {
				dueAlerts = nil
				continue
			}
			if e.notifier != nil {
				title := "Task due"
				if due.IsPartnerTask {
					title = "Partner task due"
				}
				e.notifier.Show(title, due.Title, "due-"+due.TaskID.String())
			}
		}
	}
}

func (e *Engine) handleChange(event realtime.ChangeEvent) {
	applied := e.MergeRemoteEvent(event)
	if !applied || event.Type != realtime.EventInsert || e.notifier == nil {
		return
	}

	// Partner assigned a task to this user.
	task := event.Task
	if task.AssigneeID != nil && *task.AssigneeID == e.user.ID && task.CreatorID != e.user.ID {
		e.notifier.Show("New task assigned", "Partner assigned a new task to you: \""+task.Title+"\"", "new-task-"+task.ID.String())
	}
}
