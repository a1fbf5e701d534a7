package tasks

import (
	"fmt"
	"strings"
)

// DiskCheck plans a df based disk usage check.
type DiskCheck struct{}

func (DiskCheck) Type() string        { return "disk_check" }
func (DiskCheck) Description() string { return "Check disk space usage for a path" }

func (DiskCheck) Plan(p map[string]any) (Plan, error) {
	path, err := shellParam(p, "path", "/")
	if err != nil {
		return Plan{}, err
	}
	if path == "" {
		path = "/"
	}
	format, err := stringParam(p, "format", "human")
	if err != nil {
		return Plan{}, err
	}
	format = oneOf(format, "human", "human", "bytes", "kb", "mb", "gb")
	inodes, err := boolParam(p, "include_inodes", false)
	if err != nil {
		return Plan{}, err
	}
	all, err := boolParam(p, "show_all", false)
	if err != nil {
		return Plan{}, err
	}
	warn, err := intParam(p, "threshold_warning", 80, 1, 99)
	if err != nil {
		return Plan{}, err
	}
	crit, err := intParam(p, "threshold_critical", 90, 1, 99)
	if err != nil {
		return Plan{}, err
	}
	crit = max(warn, crit)

	df := "df"
	switch format {
	case "human":
		df += " -h"
	case "kb":
		df += " -k"
	case "mb":
		df += " -m"
	case "gb":
		df += " --block-size=1G"
	}
	if inodes {
		df += " -i"
	}
	if all {
		df += " -a"
	}
	cmds := []string{}
	if path == "/" {
		cmds = append(cmds, df, "du -sh /*", "find / -type f -size +100M 2>/dev/null | head -10")
	} else {
		cmds = append(cmds, df+" "+path, "du -sh "+path+"/*", "find "+path+" -type f -size +100M")
	}
	cmds = append(cmds, "lsblk -f", "mount | grep -E '^/dev'", "df -i")

	return Plan{
		Parameters: map[string]any{
			"path": path, "format": format, "include_inodes": inodes, "show_all": all,
			"threshold_warning": warn, "threshold_critical": crit,
		},
		Commands:             cmds,
		Description:          fmt.Sprintf("Disk usage for %s; warn at %d%%, critical at %d%%", path, warn, crit),
		RequiresConfirmation: false,
		ConfirmationMessage:  fmt.Sprintf("Check disk space usage for path '%s'", path),
	}, nil
}

// MemoryCheck plans a free based memory check.
type MemoryCheck struct{}

func (MemoryCheck) Type() string        { return "memory_check" }
func (MemoryCheck) Description() string { return "Check system memory and swap usage" }

func (MemoryCheck) Plan(p map[string]any) (Plan, error) {
	format, err := stringParam(p, "format", "human")
	if err != nil {
		return Plan{}, err
	}
	format = oneOf(format, "human", "human", "bytes", "kb", "mb", "gb")
	continuous, err := boolParam(p, "continuous", false)
	if err != nil {
		return Plan{}, err
	}
	interval, err := intParam(p, "interval", 1, 1, 60)
	if err != nil {
		return Plan{}, err
	}

	free := "free"
	switch format {
	case "human":
		free += " -h"
	case "kb":
		free += " -k"
	case "mb":
		free += " -m"
	case "gb":
		free += " -g"
	}
	if continuous {
		free += fmt.Sprintf(" -s %d", interval)
	}
	return Plan{
		Parameters: map[string]any{"format": format, "continuous": continuous, "interval": interval},
		Commands: []string{
			free,
			"cat /proc/meminfo",
			"ps aux --sort=-%mem | head -10",
			"vmstat 1 5",
			"cat /proc/swaps",
		},
		Description:          "Memory and swap usage with the top consumers",
		RequiresConfirmation: false,
		ConfirmationMessage:  "Check system memory and swap usage",
	}, nil
}

// ProcessCheck plans a ps listing.
type ProcessCheck struct{}

func (ProcessCheck) Type() string        { return "process_check" }
func (ProcessCheck) Description() string { return "List running processes, optionally by user or name" }

func (ProcessCheck) Plan(p map[string]any) (Plan, error) {
	user, err := shellParam(p, "user", "")
	if err != nil {
		return Plan{}, err
	}
	name, err := shellParam(p, "name", "")
	if err != nil {
		return Plan{}, err
	}
	sortBy, err := stringParam(p, "sort", "cpu")
	if err != nil {
		return Plan{}, err
	}
	sortBy = oneOf(sortBy, "cpu", "cpu", "mem", "pid", "time", "command")
	limit, err := intParam(p, "limit", 20, 1, 100)
	if err != nil {
		return Plan{}, err
	}
	tree, err := boolParam(p, "tree_view", false)
	if err != nil {
		return Plan{}, err
	}
	threads, err := boolParam(p, "show_threads", false)
	if err != nil {
		return Plan{}, err
	}

	sortFlag := map[string]string{"cpu": " --sort=-%cpu", "mem": " --sort=-%mem", "pid": " --sort=pid", "time": " --sort=-time"}[sortBy]
	ps := "ps aux" + sortFlag
	if user != "" {
		ps = "ps -u " + user + " -o pid,ppid,user,%cpu,%mem,vsz,rss,tty,stat,start,time,command" + sortFlag
	}
	ps += fmt.Sprintf(" | head -%d", limit+1)
	if name != "" {
		ps += " | grep -i " + name
	}
	cmds := []string{ps}
	if tree {
		cmds = append(cmds, "pstree -p", "ps auxf")
	}
	if threads {
		cmds = append(cmds, "ps -eLf")
	}
	cmds = append(cmds, "top -b -n1 | head -20", "systemctl list-units --type=service --state=running")

	var msg string
	switch {
	case user != "" && name != "":
		msg = fmt.Sprintf("List processes for user '%s' matching '%s'", user, name)
	case user != "":
		msg = fmt.Sprintf("List processes for user '%s'", user)
	case name != "":
		msg = fmt.Sprintf("List processes matching '%s'", name)
	default:
		msg = "List running system processes"
	}
	return Plan{
		Parameters: map[string]any{
			"user": user, "name": name, "sort": sortBy, "limit": limit, "tree_view": tree, "show_threads": threads,
		},
		Commands:             cmds,
		Description:          fmt.Sprintf("Top %d processes by %s", limit, sortBy),
		RequiresConfirmation: false,
		ConfirmationMessage:  msg,
	}, nil
}

// LogAnalyze plans a journalctl query.
type LogAnalyze struct{}

func (LogAnalyze) Type() string { return "log_analyze" }
func (LogAnalyze) Description() string {
	return "Query the systemd journal for a service or the whole system"
}

func (LogAnalyze) Plan(p map[string]any) (Plan, error) {
	service, err := shellParam(p, "service", "")
	if err != nil {
		return Plan{}, err
	}
	since, err := quotedParam(p, "since", "1 hour ago")
	if err != nil {
		return Plan{}, err
	}
	until, err := quotedParam(p, "until", "now")
	if err != nil {
		return Plan{}, err
	}
	priority, err := stringParam(p, "priority", "info")
	if err != nil {
		return Plan{}, err
	}
	priority = oneOf(priority, "info", "emerg", "alert", "crit", "err", "warning", "notice", "info", "debug")
	lines, err := intParam(p, "lines", 50, 1, 1000)
	if err != nil {
		return Plan{}, err
	}
	pattern, err := quotedParam(p, "grep_pattern", "")
	if err != nil {
		return Plan{}, err
	}
	output, err := stringParam(p, "output_format", "short")
	if err != nil {
		return Plan{}, err
	}
	output = oneOf(output, "short", "short", "short-iso", "verbose", "json", "cat")

	base := "journalctl"
	if service != "" {
		base += " -u " + service
	}
	if since != "" {
		base += " --since '" + since + "'"
	}
	if until != "" && until != "now" {
		base += " --until '" + until + "'"
	}
	base += fmt.Sprintf(" -p %s -n %d -o %s", priority, lines, output)

	cmds := []string{base}
	if pattern != "" {
		cmds = append(cmds, base+" | grep -i '"+pattern+"'")
	}
	if service != "" {
		cmds = append(cmds, "systemctl status "+service, "systemctl is-enabled "+service)
	}
	cmds = append(cmds, "dmesg | tail -20", "journalctl --disk-usage")

	target := "system logs"
	if service != "" {
		target = fmt.Sprintf("logs for service '%s'", service)
	}
	return Plan{
		Parameters: map[string]any{
			"service": service, "since": since, "until": until, "priority": priority,
			"lines": lines, "grep_pattern": pattern, "output_format": output,
		},
		Commands:             cmds,
		Description:          "Journal entries at priority " + priority + " or higher",
		RequiresConfirmation: true,
		ConfirmationMessage:  fmt.Sprintf("Analyze %s (last %d lines since %s)", target, lines, since),
	}, nil
}

// BackupCreate plans an rsync backup. Dry runs are the default.
type BackupCreate struct{}

func (BackupCreate) Type() string        { return "backup_create" }
func (BackupCreate) Description() string { return "Back up a directory with rsync" }

var defaultBackupExcludes = []string{"*.tmp", "*.log", ".cache", ".thumbnails", "Trash"}

func (BackupCreate) Plan(p map[string]any) (Plan, error) {
	src, err := shellParam(p, "source", "/home")
	if err != nil {
		return Plan{}, err
	}
	dst, err := shellParam(p, "destination", "/backup")
	if err != nil {
		return Plan{}, err
	}
	src, dst = strings.TrimRight(src, "/"), strings.TrimRight(dst, "/")
	if src == "" || dst == "" {
		return Plan{}, invalidParamError{key: "source", msg: "source and destination must not be the filesystem root"}
	}
	if src == dst {
		return Plan{}, invalidParamError{key: "destination", msg: "must differ from source"}
	}
	kind, err := stringParam(p, "type", "incremental")
	if err != nil {
		return Plan{}, err
	}
	kind = oneOf(kind, "incremental", "full", "incremental", "differential", "sync")
	exclude, err := quotedParam(p, "exclude", "")
	if err != nil {
		return Plan{}, err
	}
	compress, err := boolParam(p, "compress", true)
	if err != nil {
		return Plan{}, err
	}
	perms, err := boolParam(p, "preserve_permissions", true)
	if err != nil {
		return Plan{}, err
	}
	dryRun, err := boolParam(p, "dry_run", true)
	if err != nil {
		return Plan{}, err
	}
	del, err := boolParam(p, "delete_excluded", false)
	if err != nil {
		return Plan{}, err
	}
	bw, err := shellParam(p, "bandwidth_limit", "")
	if err != nil {
		return Plan{}, err
	}

	opts := []string{"-av"}
	if compress {
		opts = append(opts, "-z")
	}
	if perms {
		opts = append(opts, "-p")
	}
	if dryRun {
		opts = append(opts, "-n")
	}
	if del {
		opts = append(opts, "--delete")
	}
	opts = append(opts, "--progress", "--stats")
	if bw != "" {
		opts = append(opts, "--bwlimit="+bw)
	}
	var excludes []string
	for _, pat := range strings.Split(exclude, ",") {
		if pat = strings.TrimSpace(pat); pat != "" {
			excludes = append(excludes, "--exclude='"+pat+"'")
		}
	}
	for _, pat := range defaultBackupExcludes {
		excludes = append(excludes, "--exclude='"+pat+"'")
	}
	rsync := fmt.Sprintf("rsync %s %s %s/ %s/", strings.Join(opts, " "), strings.Join(excludes, " "), src, dst)

	desc := fmt.Sprintf("%s backup of %s to %s", kind, src, dst)
	if dryRun {
		desc += " (dry run)"
	}
	return Plan{
		Parameters: map[string]any{
			"source": src, "destination": dst, "type": kind, "exclude": exclude, "compress": compress,
			"preserve_permissions": perms, "dry_run": dryRun, "delete_excluded": del, "bandwidth_limit": bw,
		},
		Commands:             []string{"mkdir -p " + dst, rsync, "du -sh " + src, "du -sh " + dst},
		Description:          desc,
		RequiresConfirmation: true,
		ConfirmationMessage:  fmt.Sprintf("Create %s backup from '%s' to '%s'", kind, src, dst),
	}, nil
}
