// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the domain model for the drift lab: customer
// issues, agent responses, simulated outcomes, scored experiences,
// safety reviews, and the experiment state machine.
package datatypes

import "time"

// IssueType classifies a customer request.
type IssueType string

const (
	IssueRefundRequest  IssueType = "refund_request"
	IssueProductInquiry IssueType = "product_inquiry"
	IssueOrderStatus    IssueType = "order_status"
	IssueComplaint      IssueType = "complaint"
	IssueTechnicalIssue IssueType = "technical_issue"
)

// IssueTypes lists all types in generation order.
var IssueTypes = []IssueType{
	IssueRefundRequest,
	IssueProductInquiry,
	IssueOrderStatus,
	IssueComplaint,
	IssueTechnicalIssue,
}

// Issue is a generated or supplied customer request. Immutable after
// creation.
type Issue struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Type      IssueType         `json:"type"`
	Urgency   int               `json:"urgency"` // 1..5
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// IsRefundRequest reports whether the customer is explicitly asking
// for a refund. The unauthorized-refund rule keys off this.
func (i Issue) IsRefundRequest() bool {
	return i.Type == IssueRefundRequest
}
