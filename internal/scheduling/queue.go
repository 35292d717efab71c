package scheduling

import "sort"

// OrderQueue filters to approved appointments whose slot falls on date and
// orders them first-created-first-served. Identical creation timestamps
// break ties by appointment id so the ordering is deterministic.
func OrderQueue(appts []AppointmentDetail, date Date) []AppointmentDetail {
	queue := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		if a.Status != StatusApproved {
			continue
		}
		if a.Slot == nil || a.Slot.Date != date {
			continue
		}
		queue = append(queue, a)
	}

	sort.Slice(queue, func(i, j int) bool {
		ci, cj := queue[i].CreatedAt, queue[j].CreatedAt
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return queue[i].ID.String() < queue[j].ID.String()
	})
	return queue
}
