package core

import (
	"fmt"
	"strings"
)

// ChecklistVersion identifies the fixed set of checks requested per kind
const ChecklistVersion = 1

const commonInstruction = `You are a world-class cybersecurity expert specializing in phishing detection. Your goal is to analyze user-submitted content to identify potential threats. Provide a clear verdict and a detailed, structured breakdown of your findings.`

const closingInstruction = `Provide a definitive risk assessment based on these comprehensive checks.`

// CheckItem is one check the model must address
type CheckItem struct {
	Title       string
	Instruction string
}

var urlChecklist = []CheckItem{
	{"Threat Intelligence & Blacklists", "Cross-reference the URL against multiple real-time threat intelligence databases and public blacklists (e.g., Google Safe Browsing, PhishTank) for known malicious URLs, domains, and phishing kits."},
	{"URL Structure Analysis", "Scrutinize the URL for typosquatting, subdomaining attacks, misleading characters (e.g., homoglyphs), excessive length, or suspicious parameters."},
	{"Domain & WHOIS Analysis", "Analyze the domain's registration date and expiration. Simulate a WHOIS lookup to check for red flags like very recent registration or use of privacy protection services on a supposed corporate site."},
	{"SSL/TLS Certificate Validation", "Validate the SSL/TLS certificate's issuer, validity period, and type (DV, OV, EV). Check for use of basic DV certificates on sensitive login pages, which is a common tactic for phishing sites."},
	{"Redirection Chain Analysis", "Trace the full redirection path from the initial URL. Report on the number of hops and the final destination, flagging any attempts at cloaking or redirection to unexpected domains."},
	{"On-Page Content Analysis", "Simulate a scan of the landing page's content. Look for suspicious elements like password input fields, cloned login forms, urgent or threatening language, and mismatched branding (e.g., using a known company's logo on an unrelated domain)."},
	{"Certificate Transparency Log Analysis", "Simulate a check of Certificate Transparency (CT) logs for the domain. Note any unusual issuance activity, such as multiple certificates being issued in a short period, which could indicate an impending attack or a compromised domain."},
	{"Visual Content Analysis (Screenshot Simulation)", "Describe the visual elements of the landing page as if you were looking at a screenshot. Mention the logo, color scheme, presence of login forms, and overall branding consistency. Identify any visual cues that suggest it's a clone of a legitimate site."},
}

var emailChecklist = []CheckItem{
	{"Sender Authentication (SPF Record Analysis)", "Simulate a check of the Sender Policy Framework (SPF) record for the sender's domain (from the 'From' header). Determine if the sending IP address is authorized to send emails for that domain. Note any failures ('Fail'), soft failures ('SoftFail'), or misconfigurations."},
	{"Email Integrity (DKIM Signature Analysis)", "Verify the DomainKeys Identified Mail (DKIM) signature in the email headers. Report whether the signature is valid, indicating that the email has not been tampered with in transit."},
	{"Domain Policy (DMARC Record Analysis)", "Simulate a lookup of the Domain-based Message Authentication, Reporting, and Conformance (DMARC) record for the sender's domain. Analyze its policy (e.g., 'p=reject', 'p=quarantine', 'p=none') and how the email aligns with it based on the SPF and DKIM results."},
	{"Header Analysis", "Examine the email headers for signs of spoofing, unusual routing (e.g., many hops through unexpected servers), or inconsistencies between 'From', 'Reply-To', and 'Return-Path' headers."},
	{"Content and Language Analysis", "Scan the email body for suspicious language (e.g., urgency, threats), grammatical errors, and deceptive elements."},
}

var (
	linkScanCheck       = CheckItem{"Link Analysis", "Scan for deceptive links (e.g., URL shorteners, mismatched anchor text and href)."}
	linkExtractionCheck = CheckItem{"Comprehensive Link Extraction & Analysis", "Extract every single URL from the email body, including those in anchor text, plain text, and from behind URL shorteners. Analyze each unique link for phishing indicators and summarize the collective risk they present."}
)

// Checklist returns the checks requested for a descriptor, in order
func Checklist(desc RequestDescriptor) []CheckItem {
	switch desc.Kind {
	case KindURL:
		items := make([]CheckItem, len(urlChecklist))
		copy(items, urlChecklist)
		return items
	case KindEmail:
		items := make([]CheckItem, 0, len(emailChecklist)+1)
		items = append(items, emailChecklist...)
		if desc.Options.Email != nil && desc.Options.Email.ExtractAllLinks {
			return append(items, linkExtractionCheck)
		}
		return append(items, linkScanCheck)
	}
	return nil
}

// RenderPrompt builds the instruction sent to the model for a descriptor
func RenderPrompt(desc RequestDescriptor) string {
	var b strings.Builder
	b.WriteString(commonInstruction)
	b.WriteString("\n")

	switch desc.Kind {
	case KindURL:
		fmt.Fprintf(&b, "Analyze the following URL for phishing indicators: %s.", desc.Content)
		if ctx := urlContext(desc.Options.URL); len(ctx) > 0 {
			b.WriteString("\n\n**Analysis Context**:\n")
			b.WriteString(strings.Join(ctx, "\n"))
		}
		b.WriteString("\n\nYour analysis MUST include the following specific checks in the detailed breakdown:")
	case KindEmail:
		fmt.Fprintf(&b, "Analyze the following email content (including headers if provided) for phishing indicators: %s.", desc.Content)
		b.WriteString("\n\nYour analysis MUST include the following specific checks in the detailed breakdown, simulating the verification process where direct lookups are not possible:")
	}

	for i, item := range Checklist(desc) {
		fmt.Fprintf(&b, "\n%d.  **%s**: %s", i+1, item.Title, item.Instruction)
	}

	b.WriteString("\n\n")
	b.WriteString(closingInstruction)
	return b.String()
}

func urlContext(opts *URLOptions) []string {
	if opts == nil {
		return nil
	}
	var lines []string
	if opts.SimulationMode != "" {
		lines = append(lines, fmt.Sprintf("The analysis should be performed as if the request is coming from a **%s** device.",
			strings.ToLower(string(opts.SimulationMode))))
	}
	if opts.CountryCode != "" {
		lines = append(lines, fmt.Sprintf("The analysis should be performed as if the request is originating from the country with code: **%s**.",
			opts.CountryCode))
	}
	return lines
}
