package batch

import "errors"

// Validate 验证汇总记录
func (s *FeeSummary) Validate() error {
	if s.CourseBatchID == 0 {
		return errors.New("course_batch_id is required")
	}
	if s.NoOfParticipants < 0 {
		return errors.New("no_of_participants must not be negative")
	}
	return nil
}

// IsFull 检查已缴费人数是否达到批次容量
func (s *FeeSummary) IsFull() bool {
	return s.PaidNoOfParticipants >= s.NoOfParticipants
}
