// Copyright 2024 The archtape Authors
// This file is part of the archtape library.
//
// The archtape library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The archtape library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the archtape library. If not, see <http://www.gnu.org/licenses/>.

package log

import "gopkg.in/natefinch/lumberjack.v2"

// RotatingFileHandler returns a Handler that appends plain (non-colorized)
// records to path, rotating once the file exceeds maxSizeMB, so a
// long-running process doesn't leave behind one unbounded log file.
func RotatingFileHandler(path string, maxSizeMB int) Handler {
	w := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB,
		MaxAge:   28,
		Compress: true,
	}
	return StreamHandler(w, TerminalFormat())
}
