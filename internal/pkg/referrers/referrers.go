// Package referrers classifies referring hostnames into display names and
// acquisition channels.
package referrers

import "strings"

// Channel is the acquisition channel of a visit.
type Channel string

const (
	Direct   Channel = "direct"
	Search   Channel = "search"
	Social   Channel = "social"
	Email    Channel = "email"
	Referral Channel = "referral"
)

type known struct {
	name    string
	channel Channel
}

var knownReferrers = map[string]known{
	// Search engines
	"google.com":     {"Google", Search},
	"google.co.uk":   {"Google", Search},
	"google.de":      {"Google", Search},
	"google.fr":      {"Google", Search},
	"google.es":      {"Google", Search},
	"google.it":      {"Google", Search},
	"google.ca":      {"Google", Search},
	"google.com.au":  {"Google", Search},
	"google.co.jp":   {"Google", Search},
	"google.com.br":  {"Google", Search},
	"bing.com":       {"Bing", Search},
	"duckduckgo.com": {"DuckDuckGo", Search},
	"yahoo.com":      {"Yahoo", Search},
	"baidu.com":      {"Baidu", Search},
	"yandex.ru":      {"Yandex", Search},
	"ecosia.org":     {"Ecosia", Search},
	"kagi.com":       {"Kagi", Search},

	// Social media
	"x.com":           {"X/Twitter", Social},
	"twitter.com":     {"X/Twitter", Social},
	"t.co":            {"X/Twitter", Social},
	"facebook.com":    {"Facebook", Social},
	"fb.com":          {"Facebook", Social},
	"l.facebook.com":  {"Facebook", Social},
	"lm.facebook.com": {"Facebook", Social},
	"instagram.com":   {"Instagram", Social},
	"l.instagram.com": {"Instagram", Social},
	"linkedin.com":    {"LinkedIn", Social},
	"lnkd.in":         {"LinkedIn", Social},
	"tiktok.com":      {"TikTok", Social},
	"pinterest.com":   {"Pinterest", Social},
	"reddit.com":      {"Reddit", Social},
	"old.reddit.com":  {"Reddit", Social},
	"threads.net":     {"Threads", Social},
	"bsky.app":        {"Bluesky", Social},
	"mastodon.social": {"Mastodon", Social},
	"youtube.com":     {"YouTube", Social},
	"youtu.be":        {"YouTube", Social},
	"snapchat.com":    {"Snapchat", Social},
	"discord.com":     {"Discord", Social},
	"discordapp.com":  {"Discord", Social},
	"whatsapp.com":    {"WhatsApp", Social},
	"telegram.org":    {"Telegram", Social},
	"t.me":            {"Telegram", Social},
	"slack.com":       {"Slack", Social},

	// Tech communities
	"news.ycombinator.com": {"Hacker News", Social},
	"hn.algolia.com":       {"Hacker News", Social},
	"lobste.rs":            {"Lobsters", Social},
	"producthunt.com":      {"Product Hunt", Social},
	"indiehackers.com":     {"Indie Hackers", Social},
	"dev.to":               {"DEV Community", Social},
	"hashnode.com":         {"Hashnode", Social},
	"medium.com":           {"Medium", Social},
	"substack.com":         {"Substack", Social},
	"hackernoon.com":       {"HackerNoon", Social},
	"slashdot.org":         {"Slashdot", Social},
	"techcrunch.com":       {"TechCrunch", Social},
	"theverge.com":         {"The Verge", Social},
	"arstechnica.com":      {"Ars Technica", Social},
	"wired.com":            {"Wired", Social},
	"github.com":           {"GitHub", Social},
	"gitlab.com":           {"GitLab", Social},
	"stackoverflow.com":    {"Stack Overflow", Social},
	"quora.com":            {"Quora", Social},

	// News
	"nytimes.com":        {"NY Times", Referral},
	"washingtonpost.com": {"Washington Post", Referral},
	"theguardian.com":    {"The Guardian", Referral},
	"bbc.com":            {"BBC", Referral},
	"bbc.co.uk":          {"BBC", Referral},
	"cnn.com":            {"CNN", Referral},
	"reuters.com":        {"Reuters", Referral},
	"bloomberg.com":      {"Bloomberg", Referral},
	"forbes.com":         {"Forbes", Referral},
	"wsj.com":            {"WSJ", Referral},
	"ft.com":             {"Financial Times", Referral},

	// Email providers
	"mail.google.com":    {"Gmail", Email},
	"outlook.live.com":   {"Outlook", Email},
	"outlook.office.com": {"Outlook", Email},
	"mail.yahoo.com":     {"Yahoo Mail", Email},
	"protonmail.com":     {"Proton Mail", Email},
	"mail.proton.me":     {"Proton Mail", Email},

	// Link shorteners
	"bit.ly":      {"Bitly", Social},
	"tinyurl.com": {"TinyURL", Social},
	"goo.gl":      {"Google Links", Social},
	"ow.ly":       {"Hootsuite", Social},
}

// lookup resolves hostname against the known list: exact match, then without
// "www.", then the longest known parent domain.
func lookup(hostname string) (known, string, bool) {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")

	if k, ok := knownReferrers[hostname]; ok {
		return k, hostname, true
	}
	hostname = strings.TrimPrefix(hostname, "www.")
	if k, ok := knownReferrers[hostname]; ok {
		return k, hostname, true
	}

	var (
		best    known
		bestLen int
	)
	for domain, k := range knownReferrers {
		if len(domain) > bestLen && strings.HasSuffix(hostname, "."+domain) {
			best, bestLen = k, len(domain)
		}
	}
	return best, hostname, bestLen > 0
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// Unknown hostnames are returned without "www." and with the first letter
// capitalized.
func FriendlyName(hostname string) string {
	k, stripped, ok := lookup(hostname)
	if ok {
		return k.name
	}
	return capitalizeFirst(stripped)
}

// ChannelOf classifies a referrer hostname. An empty hostname is a direct
// visit; unknown hostnames are plain referrals.
func ChannelOf(hostname string) Channel {
	if strings.TrimSpace(hostname) == "" {
		return Direct
	}
	if k, _, ok := lookup(hostname); ok {
		return k.channel
	}
	return Referral
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
